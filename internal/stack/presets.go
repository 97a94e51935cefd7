package stack

import (
	"time"

	"github.com/trly/flow-ops/internal/deploy"
)

// Canonical service names within a platform deployment.
const (
	MetadataServiceName = "metadata-service"
	UIBackendName       = "ui-backend"
	UIFrontendName      = "ui-frontend"
)

// Upstream image references pinned per platform release.
const (
	metadataServiceImage = "netflixoss/metaflow_metadata_service:v2.2.3"
	uiFrontendImage      = "public.ecr.aws/outerbounds/metaflow_ui:v1.1.1"
)

// Preset is an immutable per-service record of ports, sizing and
// health checking for one of the built-in platform services.
type Preset struct {
	Name            string
	ImageRef        string
	ListenerPort    int
	ContainerPort   int
	PathPattern     string
	HealthCheckPath string
	CPU             int
	MemoryMB        int
	DesiredTasks    int
	Command         []string
}

// MetadataServicePreset returns the flow metadata service defaults.
// The service answers on container port 8080 and reports health on
// /ping.
func MetadataServicePreset() Preset {
	return Preset{
		Name:            MetadataServiceName,
		ImageRef:        metadataServiceImage,
		ListenerPort:    80,
		ContainerPort:   8080,
		HealthCheckPath: "/ping",
		CPU:             512,
		MemoryMB:        1024,
		DesiredTasks:    1,
	}
}

// UIBackendPreset returns the UI backend defaults. The backend shares
// the metadata service image but starts the ui_backend_service entry
// point, answers under the /api/ prefix on container port 8083 and
// reports health on /api/ping.
func UIBackendPreset() Preset {
	return Preset{
		Name:            UIBackendName,
		ImageRef:        metadataServiceImage,
		ListenerPort:    8083,
		ContainerPort:   8083,
		PathPattern:     "/api/*",
		HealthCheckPath: "/api/ping",
		CPU:             512,
		MemoryMB:        1024,
		DesiredTasks:    1,
		Command: []string{
			"/opt/latest/bin/python3",
			"-m", "services.ui_backend_service.ui_server",
		},
	}
}

// UIFrontendPreset returns the UI frontend defaults, serving the
// static UI bundle on container port 3000.
func UIFrontendPreset() Preset {
	return Preset{
		Name:          UIFrontendName,
		ImageRef:      uiFrontendImage,
		ListenerPort:  3000,
		ContainerPort: 3000,
		// The frontend image answers / with the UI bundle index.
		HealthCheckPath: "/",
		CPU:             512,
		MemoryMB:        1024,
		DesiredTasks:    1,
	}
}

// Spec expands the preset into a full service spec with the given
// environment and public exposure. Autoscaling targets 75 percent on
// both CPU and memory between one and three tasks.
func (p Preset) Spec(env map[string]string, public bool) deploy.ServiceSpec {
	return deploy.ServiceSpec{
		Name: p.Name,
		PortMappings: []deploy.PortMapping{
			{ListenerPort: p.ListenerPort, ContainerPort: p.ContainerPort, PathPattern: p.PathPattern},
		},
		Image:           deploy.RegistryImage{Ref: p.ImageRef},
		Command:         p.Command,
		Env:             env,
		HealthCheckPath: p.HealthCheckPath,
		CPU:             p.CPU,
		MemoryMB:        p.MemoryMB,
		DesiredTasks:    p.DesiredTasks,
		MinTasks:        1,
		MaxTasks:        3,
		Scaling: deploy.Scaling{
			TargetCPUPercent:    75,
			TargetMemoryPercent: 75,
			ScaleInCooldown:     5 * time.Minute,
			ScaleOutCooldown:    1 * time.Minute,
		},
		Public: public,
	}
}
