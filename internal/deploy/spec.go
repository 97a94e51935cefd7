// Package deploy defines the service specification consumed by the
// compiler: port mappings, image sources, network sources, sizing and
// scaling bounds. Specs are constructed once by the caller and treated
// as immutable after validation.
package deploy

import "time"

// DefaultPathPattern matches every request path on a listener rule.
const DefaultPathPattern = "*"

// PortMapping represents one externally reachable route from a load
// balancer listener port to a container port.
type PortMapping struct {
	ListenerPort  int
	ContainerPort int
	PathPattern   string
}

// Pattern returns the path pattern, falling back to the default when unset.
func (m PortMapping) Pattern() string {
	if m.PathPattern == "" {
		return DefaultPathPattern
	}
	return m.PathPattern
}

// ImageSource identifies where the container image for a service comes
// from. Exactly one concrete variant must be supplied: RegistryImage or
// LocalBuild. The sealed interface replaces the mutually exclusive
// optional parameters the upstream template used.
type ImageSource interface {
	imageSource()
}

// RegistryImage references a pre-built image in a container registry.
type RegistryImage struct {
	Ref string
}

func (RegistryImage) imageSource() {}

// LocalBuild describes an image built from a local build context.
type LocalBuild struct {
	Context    string
	Dockerfile string
	Args       map[string]string
}

func (LocalBuild) imageSource() {}

// NetworkSource identifies which network segment and compute cluster a
// service binds to. A nil NetworkSource means the service attaches to
// the shared resources supplied at compile time.
type NetworkSource interface {
	networkSource()
}

// ExistingNetwork references an already-provisioned network segment and
// compute cluster by identifier. The compiler passes these through
// without materializing new resources.
type ExistingNetwork struct {
	SegmentID string
	ClusterID string
}

func (ExistingNetwork) networkSource() {}

// NewNetwork materializes a new network segment from a CIDR block,
// along with a compute cluster bound to it.
type NewNetwork struct {
	CIDR string
}

func (NewNetwork) networkSource() {}

// Scaling holds autoscaling thresholds and cooldowns for a service.
// Zero-valued cooldowns defer to the autoscaling engine's defaults.
type Scaling struct {
	TargetCPUPercent    int
	TargetMemoryPercent int
	ScaleInCooldown     time.Duration
	ScaleOutCooldown    time.Duration
}

// ServiceSpec is the full configuration for one deployable webservice.
type ServiceSpec struct {
	// Name prefixes every logical resource identifier derived for
	// this service.
	Name string

	// PortMappings lists the externally reachable routes. Listener
	// ports must be pairwise distinct; order carries no meaning.
	PortMappings []PortMapping

	// Image is the container image source. Required.
	Image ImageSource

	// Command overrides the image entrypoint arguments when set.
	Command []string

	// Env holds environment variable overrides merged over the
	// runtime defaults; overrides win on key collision.
	Env map[string]string

	// HealthCheckPath is the HTTP path probed by the target-group
	// health check.
	HealthCheckPath string

	// HealthCheckPort is the container port probed by health checks.
	// When zero it is inferred from the sole port mapping; inference
	// fails when more than one mapping exists.
	HealthCheckPort int

	// CPU and MemoryMB size the task. The pair must be one of the
	// platform's valid combinations.
	CPU      int
	MemoryMB int

	// Replica bounds: MinTasks <= DesiredTasks <= MaxTasks, all >= 0.
	DesiredTasks int
	MinTasks     int
	MaxTasks     int

	Scaling Scaling

	// Network optionally binds the service to its own network
	// segment instead of the shared one.
	Network NetworkSource

	// Public exposes the service's load balancer to the internet.
	Public bool
}

// ContainerPorts returns the distinct container ports across the
// mapping list, in first-appearance order.
func (s *ServiceSpec) ContainerPorts() []int {
	seen := make(map[int]struct{}, len(s.PortMappings))
	ports := make([]int, 0, len(s.PortMappings))
	for _, m := range s.PortMappings {
		if _, ok := seen[m.ContainerPort]; ok {
			continue
		}
		seen[m.ContainerPort] = struct{}{}
		ports = append(ports, m.ContainerPort)
	}
	return ports
}

// ListenerPorts returns the listener ports across the mapping list, in
// first-appearance order.
func (s *ServiceSpec) ListenerPorts() []int {
	ports := make([]int, 0, len(s.PortMappings))
	for _, m := range s.PortMappings {
		ports = append(ports, m.ListenerPort)
	}
	return ports
}
