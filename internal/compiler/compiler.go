// Package compiler turns validated service specs into nodes of a
// declarative resource graph. Compilation is a synchronous, single
// pass with five stages composed strictly forward: validate, resolve
// network, package runtime, compile routing, bind autoscaling. Every
// failure is a terminal configuration defect reported before any graph
// node for the failing service is exposed.
package compiler

import (
	"fmt"
	"strings"

	"github.com/trly/flow-ops/internal/deploy"
	"github.com/trly/flow-ops/internal/log"
	"github.com/trly/flow-ops/internal/resource"
)

// Shared references externally owned resources that multiple services
// may attach to. The compiler references these nodes but never owns
// them; ownership stays with the caller that compiled them.
type Shared struct {
	SegmentID        string
	ClusterID        string
	LoadBalancerID   string
	LoadBalancerHost string
	SecurityGroupIDs []string
}

// DeployedService is the handle returned after packaging, routing and
// scaling are bound. It exposes the externally reachable URL and the
// underlying routing identifiers for further composition, such as
// attaching authentication rules.
type DeployedService struct {
	Name         string
	URL          string
	ServiceID    string
	TaskDefID    string
	TargetGroups map[int]string // container port -> logical ID
	Listeners    map[int]string // listener port -> logical ID
	Rules        map[int]string // listener port -> forwarding rule logical ID
	PathPrefix   string
	Env          map[string]string
}

// Compiler accumulates compiled resources for one deployment into a
// single graph. It holds no state shared across deployments; concurrent
// callers must use independent Compiler instances.
type Compiler struct {
	logger log.Logger
	graph  *resource.Graph
}

// New creates a compiler writing into a fresh resource graph.
func New(logger log.Logger) *Compiler {
	return &Compiler{
		logger: logger,
		graph:  resource.NewGraph(),
	}
}

// Graph returns the accumulated resource graph.
func (c *Compiler) Graph() *resource.Graph {
	return c.graph
}

// depsIn filters logical IDs down to resources present in the graph.
// Externally owned resources (a shared load balancer, an existing
// segment or cluster) are referenced in properties but never owned, so
// they carry no dependency edges.
func (c *Compiler) depsIn(ids ...string) []string {
	var deps []string
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, err := c.graph.Get(id); err == nil {
			deps = append(deps, id)
		}
	}
	return deps
}

// CompileService runs the full pipeline for one service spec against
// the supplied shared resources and returns the deployed-service
// handle. The spec is validated first; nothing is added to the graph
// unless validation passes.
func (c *Compiler) CompileService(spec deploy.ServiceSpec, shared Shared) (*DeployedService, error) {
	normalized, err := deploy.Normalize(spec)
	if err != nil {
		return nil, err
	}

	// Every remaining failure mode is checked before the first graph
	// node is constructed, so a failed call never exposes a partial
	// resource graph.
	if err := validateHealthCheckTarget(normalized); err != nil {
		return nil, err
	}
	image, err := resolveImage(normalized)
	if err != nil {
		return nil, err
	}
	if err := validateScaling(normalized); err != nil {
		return nil, err
	}

	net, err := c.resolveNetwork(normalized, shared)
	if err != nil {
		return nil, err
	}

	runtime, err := c.packageRuntime(normalized, image)
	if err != nil {
		return nil, err
	}

	targetGroups, err := c.compileTargetGroups(normalized, net)
	if err != nil {
		return nil, err
	}

	listeners, err := c.compileListeners(normalized, net, targetGroups)
	if err != nil {
		return nil, err
	}

	serviceID, err := c.addServiceResource(normalized, net, runtime, targetGroups)
	if err != nil {
		return nil, err
	}

	if err := c.bindAutoscaling(normalized, serviceID); err != nil {
		return nil, err
	}

	prefix := primaryPathPrefix(normalized.PortMappings)
	deployed := &DeployedService{
		Name:         normalized.Name,
		URL:          serviceURL(net.LoadBalancerHost, prefix),
		ServiceID:    serviceID,
		TaskDefID:    runtime.TaskDefID,
		TargetGroups: targetGroups.byContainerPort,
		Listeners:    listeners.byListenerPort,
		Rules:        listeners.rulesByListenerPort,
		PathPrefix:   prefix,
		Env:          runtime.Env,
	}

	c.logger.Debug("Compiled service",
		"service", normalized.Name,
		"targetGroups", len(deployed.TargetGroups),
		"listeners", len(deployed.Listeners))

	return deployed, nil
}

func (c *Compiler) addServiceResource(spec deploy.ServiceSpec, net resolvedNetwork, runtime runtimeConfig, targetGroups *TargetGroupSet) (string, error) {
	serviceID := resource.LogicalID(spec.Name, "service")

	ids := []string{runtime.TaskDefID, net.ClusterID}
	attachments := make([]string, 0, len(targetGroups.order))
	for _, port := range targetGroups.order {
		tgID := targetGroups.byContainerPort[port]
		ids = append(ids, tgID)
		attachments = append(attachments, tgID)
	}
	deps := c.depsIn(ids...)

	props := map[string]any{
		"Cluster":        net.ClusterID,
		"TaskDefinition": runtime.TaskDefID,
		"DesiredCount":   spec.DesiredTasks,
		"Subnets":        "private-with-egress",
		"AssignPublicIP": false,
		"TargetGroups":   attachments,
		// Rolling deploys roll back automatically when too many tasks fail.
		"CircuitBreakerRollback": true,
	}
	if len(net.SecurityGroupIDs) > 0 {
		props["SecurityGroups"] = net.SecurityGroupIDs
	}

	err := c.graph.Add(&resource.Resource{
		LogicalID:  serviceID,
		Kind:       resource.KindService,
		Properties: props,
		DependsOn:  deps,
	})
	if err != nil {
		return "", err
	}
	return serviceID, nil
}

// primaryPathPrefix derives the path prefix baked into the service URL
// from the first mapping's pattern, with the glob suffix removed.
func primaryPathPrefix(mappings []deploy.PortMapping) string {
	if len(mappings) == 0 {
		return "/"
	}
	prefix := strings.TrimSuffix(mappings[0].Pattern(), "*")
	if prefix == "" {
		prefix = "/"
	}
	return prefix
}

func serviceURL(host, prefix string) string {
	return fmt.Sprintf("http://%s%s", host, prefix)
}
