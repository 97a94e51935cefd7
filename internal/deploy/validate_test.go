package deploy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseSpec() ServiceSpec {
	return ServiceSpec{
		Name:            "metadata-service",
		Image:           RegistryImage{Ref: "netflixoss/metaflow_metadata_service:v2.2.3"},
		PortMappings:    []PortMapping{{ListenerPort: 80, ContainerPort: 8080}},
		HealthCheckPath: "/ping",
		CPU:             512,
		MemoryMB:        1024,
		DesiredTasks:    1,
		MinTasks:        1,
		MaxTasks:        1,
	}
}

func TestNormalizeInfersHealthCheckPort(t *testing.T) {
	spec := baseSpec()

	normalized, err := Normalize(spec)
	require.NoError(t, err)

	assert.Equal(t, 8080, normalized.HealthCheckPort)
	// Input spec is never mutated
	assert.Equal(t, 0, spec.HealthCheckPort)
}

func TestNormalizeKeepsExplicitHealthCheckPort(t *testing.T) {
	spec := baseSpec()
	spec.PortMappings = []PortMapping{
		{ListenerPort: 80, ContainerPort: 3000},
		{ListenerPort: 8080, ContainerPort: 5432},
	}
	spec.HealthCheckPort = 3000

	normalized, err := Normalize(spec)
	require.NoError(t, err)
	assert.Equal(t, 3000, normalized.HealthCheckPort)
}

func TestNormalizeFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ServiceSpec)
		detail string
	}{
		{
			name:   "missing image source",
			mutate: func(s *ServiceSpec) { s.Image = nil },
			detail: "image source is required",
		},
		{
			name:   "zero port mappings",
			mutate: func(s *ServiceSpec) { s.PortMappings = nil },
			detail: "at least one port mapping",
		},
		{
			name: "duplicate listener port",
			mutate: func(s *ServiceSpec) {
				s.PortMappings = []PortMapping{
					{ListenerPort: 80, ContainerPort: 3000, PathPattern: "/api/*"},
					{ListenerPort: 80, ContainerPort: 4000, PathPattern: "/"},
				}
				s.HealthCheckPort = 3000
			},
			detail: "listener port 80 appears more than once",
		},
		{
			name: "ambiguous health check port",
			mutate: func(s *ServiceSpec) {
				s.PortMappings = []PortMapping{
					{ListenerPort: 80, ContainerPort: 3000},
					{ListenerPort: 8080, ContainerPort: 5432},
				}
			},
			detail: "cannot be inferred",
		},
		{
			name:   "negative min tasks",
			mutate: func(s *ServiceSpec) { s.MinTasks = -1 },
			detail: "non-negative",
		},
		{
			name: "min exceeds max",
			mutate: func(s *ServiceSpec) {
				s.MinTasks = 3
				s.MaxTasks = 2
				s.DesiredTasks = 3
			},
			detail: "exceeds maxTasks",
		},
		{
			name: "desired outside bounds",
			mutate: func(s *ServiceSpec) {
				s.MinTasks = 1
				s.MaxTasks = 2
				s.DesiredTasks = 5
			},
			detail: "must lie within",
		},
		{
			name:   "invalid cpu size",
			mutate: func(s *ServiceSpec) { s.CPU = 300 },
			detail: "not a valid task size",
		},
		{
			name: "memory outside cpu range",
			mutate: func(s *ServiceSpec) {
				s.CPU = 256
				s.MemoryMB = 8192
			},
			detail: "outside the valid range",
		},
		{
			name:   "missing health check path",
			mutate: func(s *ServiceSpec) { s.HealthCheckPath = "" },
			detail: "health-check path is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := baseSpec()
			tt.mutate(&spec)

			_, err := Normalize(spec)
			require.Error(t, err)
			assert.True(t, IsConfigurationError(err), "expected ConfigurationError, got %T", err)
			assert.Contains(t, err.Error(), tt.detail)
		})
	}
}

func TestConflictingListenerPorts(t *testing.T) {
	port, conflict := ConflictingListenerPorts([]PortMapping{
		{ListenerPort: 80, ContainerPort: 3000},
		{ListenerPort: 8080, ContainerPort: 3000},
	})
	assert.False(t, conflict)
	assert.Zero(t, port)

	port, conflict = ConflictingListenerPorts([]PortMapping{
		{ListenerPort: 80, ContainerPort: 3000},
		{ListenerPort: 80, ContainerPort: 4000},
	})
	assert.True(t, conflict)
	assert.Equal(t, 80, port)
}

func TestContainerPortsDeduplicates(t *testing.T) {
	spec := baseSpec()
	spec.PortMappings = []PortMapping{
		{ListenerPort: 80, ContainerPort: 3000},
		{ListenerPort: 8080, ContainerPort: 3000},
		{ListenerPort: 9090, ContainerPort: 4000},
	}

	assert.Equal(t, []int{3000, 4000}, spec.ContainerPorts())
	assert.Equal(t, []int{80, 8080, 9090}, spec.ListenerPorts())
}

func TestPortMappingPatternDefault(t *testing.T) {
	assert.Equal(t, "*", PortMapping{}.Pattern())
	assert.Equal(t, "/api/*", PortMapping{PathPattern: "/api/*"}.Pattern())
}

func TestErrorHelpers(t *testing.T) {
	cfgErr := &ConfigurationError{Service: "svc", Field: "cpu", Detail: "bad"}
	assert.True(t, IsConfigurationError(cfgErr))
	assert.False(t, IsResourceConflictError(cfgErr))

	conflictErr := &ResourceConflictError{Service: "svc", First: "network.cidr", Second: "shared network segment"}
	assert.True(t, IsResourceConflictError(conflictErr))
	assert.Contains(t, conflictErr.Error(), "cannot both be supplied")

	resErr := &ExternalResolutionFailure{Kind: "network segment", ID: "seg-1234"}
	assert.True(t, IsExternalResolutionFailure(resErr))
	assert.False(t, IsConfigurationError(resErr))
}
