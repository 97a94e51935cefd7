package deploy

import (
	"fmt"
	"strings"
)

// validTaskSizes maps CPU units to the memory (MB) ranges the container
// platform accepts for that CPU size. Memory must fall inside the range
// in 1024 MB increments above the minimum, except for the smallest CPU
// size which allows 512 MB.
var validTaskSizes = map[int][2]int{
	256:  {512, 2048},
	512:  {1024, 4096},
	1024: {2048, 8192},
	2048: {4096, 16384},
	4096: {8192, 30720},
}

// ConflictingListenerPorts reports whether any listener port appears
// more than once in the mapping list, and returns the first offender.
func ConflictingListenerPorts(mappings []PortMapping) (int, bool) {
	seen := make(map[int]struct{}, len(mappings))
	for _, m := range mappings {
		if _, ok := seen[m.ListenerPort]; ok {
			return m.ListenerPort, true
		}
		seen[m.ListenerPort] = struct{}{}
	}
	return 0, false
}

// Normalize validates a service spec for internal consistency and
// returns a normalized copy with the inferred health-check port filled
// in. It has no side effects; the input spec is never mutated.
func Normalize(spec ServiceSpec) (ServiceSpec, error) {
	if spec.Name == "" {
		return ServiceSpec{}, &ConfigurationError{Service: spec.Name, Field: "name", Detail: "service name is required"}
	}

	if spec.Image == nil {
		return ServiceSpec{}, &ConfigurationError{
			Service: spec.Name,
			Field:   "image",
			Detail:  "an image source is required: either a registry reference or a local build descriptor",
		}
	}

	if len(spec.PortMappings) == 0 {
		return ServiceSpec{}, &ConfigurationError{
			Service: spec.Name,
			Field:   "portMappings",
			Detail:  "at least one port mapping is required; without one no target group could be health-checked",
		}
	}

	if port, conflict := ConflictingListenerPorts(spec.PortMappings); conflict {
		return ServiceSpec{}, &ConfigurationError{
			Service: spec.Name,
			Field:   "portMappings",
			Detail:  fmt.Sprintf("listener port %d appears more than once; each listener port may be bound only once", port),
		}
	}

	for _, m := range spec.PortMappings {
		if m.ListenerPort <= 0 || m.ContainerPort <= 0 {
			return ServiceSpec{}, &ConfigurationError{
				Service: spec.Name,
				Field:   "portMappings",
				Detail:  fmt.Sprintf("ports must be positive, got %d->%d", m.ListenerPort, m.ContainerPort),
			}
		}
	}

	if err := validateReplicaBounds(&spec); err != nil {
		return ServiceSpec{}, err
	}

	if err := validateTaskSize(&spec); err != nil {
		return ServiceSpec{}, err
	}

	normalized := spec
	if normalized.HealthCheckPort == 0 {
		if len(spec.PortMappings) != 1 {
			return ServiceSpec{}, &ConfigurationError{
				Service: spec.Name,
				Field:   "healthCheckPort",
				Detail: fmt.Sprintf("health-check port is unset and cannot be inferred: the mapping list has %d entries (listener ports %s)",
					len(spec.PortMappings), joinPorts(spec.ListenerPorts())),
			}
		}
		normalized.HealthCheckPort = spec.PortMappings[0].ContainerPort
	}

	if normalized.HealthCheckPath == "" {
		return ServiceSpec{}, &ConfigurationError{
			Service: spec.Name,
			Field:   "healthCheckPath",
			Detail:  "a health-check path is required",
		}
	}

	return normalized, nil
}

func validateReplicaBounds(spec *ServiceSpec) error {
	if spec.MinTasks < 0 || spec.MaxTasks < 0 || spec.DesiredTasks < 0 {
		return &ConfigurationError{
			Service: spec.Name,
			Field:   "tasks",
			Detail: fmt.Sprintf("replica bounds must be non-negative, got min=%d desired=%d max=%d",
				spec.MinTasks, spec.DesiredTasks, spec.MaxTasks),
		}
	}
	if spec.MinTasks > spec.MaxTasks {
		return &ConfigurationError{
			Service: spec.Name,
			Field:   "tasks",
			Detail:  fmt.Sprintf("minTasks (%d) exceeds maxTasks (%d)", spec.MinTasks, spec.MaxTasks),
		}
	}
	if spec.DesiredTasks < spec.MinTasks || spec.DesiredTasks > spec.MaxTasks {
		return &ConfigurationError{
			Service: spec.Name,
			Field:   "tasks",
			Detail: fmt.Sprintf("desiredTasks (%d) must lie within [minTasks=%d, maxTasks=%d]",
				spec.DesiredTasks, spec.MinTasks, spec.MaxTasks),
		}
	}
	return nil
}

func validateTaskSize(spec *ServiceSpec) error {
	memRange, ok := validTaskSizes[spec.CPU]
	if !ok {
		return &ConfigurationError{
			Service: spec.Name,
			Field:   "cpu",
			Detail:  fmt.Sprintf("cpu units %d are not a valid task size; valid sizes are 256, 512, 1024, 2048 and 4096", spec.CPU),
		}
	}
	if spec.MemoryMB < memRange[0] || spec.MemoryMB > memRange[1] {
		return &ConfigurationError{
			Service: spec.Name,
			Field:   "memoryMB",
			Detail: fmt.Sprintf("memory %d MB is outside the valid range [%d, %d] for cpu units %d",
				spec.MemoryMB, memRange[0], memRange[1], spec.CPU),
		}
	}
	return nil
}

func joinPorts(ports []int) string {
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = fmt.Sprintf("%d", p)
	}
	return strings.Join(parts, ", ")
}
