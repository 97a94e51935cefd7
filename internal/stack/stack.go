// Package stack assembles a full workflow platform deployment: the
// shared network and load balancer, the backing database, artifact
// bucket, run-state table and batch compute, and the built-in platform
// services wired together through their environment contract.
package stack

import (
	"fmt"
	"strings"

	"github.com/trly/flow-ops/internal/compiler"
	"github.com/trly/flow-ops/internal/config"
	"github.com/trly/flow-ops/internal/deploy"
	"github.com/trly/flow-ops/internal/log"
	"github.com/trly/flow-ops/internal/resource"
)

// Settings selects what the assembled platform contains. The zero
// value compiles a private deployment named "flow" with the default
// network range and no UI or batch compute.
type Settings struct {
	Name    string
	VpcCidr string
	// AvailabilityZones is the number of zones the shared network
	// spans. The platform needs at least two; smaller values are
	// raised to two.
	AvailabilityZones int
	DatabaseName      string
	DatabaseUser      string
	BatchMaxVCPUs     int
	EnableUI          bool
	EnableBatch       bool
	Public            bool
	// Auth protects the UI services behind an OIDC login flow.
	// Requires EnableUI.
	Auth *compiler.OIDCConfig
	// Env is applied on top of the generated environment contract of
	// every built-in service.
	Env map[string]string
}

func (s Settings) withDefaults() Settings {
	if s.Name == "" {
		s.Name = "flow"
	}
	if s.VpcCidr == "" {
		s.VpcCidr = config.DefaultVpcCidr
	}
	if s.AvailabilityZones < 2 {
		s.AvailabilityZones = 2
	}
	if s.DatabaseName == "" {
		s.DatabaseName = "metaflow"
	}
	if s.DatabaseUser == "" {
		s.DatabaseUser = "master"
	}
	if s.BatchMaxVCPUs == 0 {
		s.BatchMaxVCPUs = 64
	}
	return s
}

// Result is the compiled platform: the complete resource graph, the
// deployed-service handles keyed by service name, and the template
// outputs surfaced to operators.
type Result struct {
	Graph    *resource.Graph
	Services map[string]*compiler.DeployedService
	Outputs  map[string]string
}

// Compile assembles the platform described by settings plus any extra
// services from the deployment manifest into one resource graph.
func Compile(settings Settings, extras []deploy.ServiceSpec, logger log.Logger) (*Result, error) {
	settings = settings.withDefaults()

	if err := validateListenerPorts(settings, extras); err != nil {
		return nil, err
	}
	if settings.Auth != nil && !settings.EnableUI {
		return nil, &deploy.ConfigurationError{
			Field:  "auth",
			Detail: "OIDC authentication protects the UI services and requires the UI to be enabled",
		}
	}

	c := compiler.New(logger)
	shared, err := c.CompileSharedNetwork(settings.Name, settings.VpcCidr, settings.AvailabilityZones, settings.Public)
	if err != nil {
		return nil, err
	}

	backing, err := addBackingResources(c, settings, shared)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Graph:    c.Graph(),
		Services: make(map[string]*compiler.DeployedService),
		Outputs:  make(map[string]string),
	}

	metadata, err := compilePreset(c, MetadataServicePreset(), backing.serviceEnv(settings), settings, shared)
	if err != nil {
		return nil, err
	}
	result.Services[metadata.Name] = metadata

	if settings.EnableUI {
		backendEnv := compiler.MergeEnv(backing.serviceEnv(settings), map[string]string{
			"UI_ENABLED":                    "1",
			"PATH_PREFIX":                   "/api",
			"MF_DATASTORE_ROOT":             backing.datastoreRoot,
			"METAFLOW_DATASTORE_SYSROOT_S3": backing.datastoreRoot,
			"METAFLOW_DEFAULT_DATASTORE":    "s3",
			"METAFLOW_DEFAULT_METADATA":     "service",
			"METAFLOW_SERVICE_URL":          metadata.URL,
			"LOGLEVEL":                      "DEBUG",
		})
		backend, err := compilePreset(c, UIBackendPreset(), backendEnv, settings, shared)
		if err != nil {
			return nil, err
		}
		result.Services[backend.Name] = backend

		frontendEnv := compiler.MergeEnv(map[string]string{
			"METAFLOW_SERVICE": backend.URL,
		}, settings.Env)
		frontend, err := compilePreset(c, UIFrontendPreset(), frontendEnv, settings, shared)
		if err != nil {
			return nil, err
		}
		result.Services[frontend.Name] = frontend
		result.Outputs["UIUrl"] = frontend.URL

		if settings.Auth != nil {
			if err := attachUIAuth(c, settings.Auth, backend, frontend); err != nil {
				return nil, err
			}
		}
	}

	for _, spec := range extras {
		deployed, err := c.CompileService(spec, shared)
		if err != nil {
			return nil, err
		}
		result.Services[deployed.Name] = deployed
	}

	result.Outputs["LoadBalancerUrl"] = fmt.Sprintf("http://%s", shared.LoadBalancerHost)
	result.Outputs["DatabaseUrl"] = fmt.Sprintf("%s:5432", backing.databaseHost)
	result.Outputs["MetadataServiceDocsUrl"] = strings.TrimSuffix(metadata.URL, "/") + "/api/doc"
	result.Outputs["DatastoreRoot"] = backing.datastoreRoot

	return result, nil
}

// attachUIAuth wraps every forwarding rule of the given services with
// an authenticate-OIDC action.
func attachUIAuth(c *compiler.Compiler, auth *compiler.OIDCConfig, services ...*compiler.DeployedService) error {
	for _, svc := range services {
		for _, ruleID := range svc.Rules {
			if err := c.AttachOIDC(ruleID, *auth); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateListenerPorts rejects deployments whose services claim the
// same listener port on the shared load balancer. Runs before any
// resource is constructed so a conflicting deployment yields no graph.
func validateListenerPorts(settings Settings, extras []deploy.ServiceSpec) error {
	claimed := make(map[int]string)
	claim := func(name string, ports []int) error {
		for _, port := range ports {
			if owner, ok := claimed[port]; ok {
				return &deploy.ResourceConflictError{
					Service: name,
					First:   fmt.Sprintf("listener port %d", port),
					Second:  fmt.Sprintf("the same listener port on %s", owner),
				}
			}
			claimed[port] = name
		}
		return nil
	}

	presets := []Preset{MetadataServicePreset()}
	if settings.EnableUI {
		presets = append(presets, UIBackendPreset(), UIFrontendPreset())
	}
	for _, preset := range presets {
		if err := claim(preset.Name, []int{preset.ListenerPort}); err != nil {
			return err
		}
	}
	for _, spec := range extras {
		if err := claim(spec.Name, spec.ListenerPorts()); err != nil {
			return err
		}
	}
	return nil
}

// backingResources carries the logical IDs and reference expressions
// of the platform's stateful resources into the service environment
// contract.
type backingResources struct {
	databaseID    string
	secretID      string
	bucketID      string
	databaseHost  string
	datastoreRoot string
}

// serviceEnv renders the database connection contract every platform
// service consumes, with operator overrides applied on top.
func (b backingResources) serviceEnv(settings Settings) map[string]string {
	return compiler.MergeEnv(map[string]string{
		"MF_METADATA_DB_HOST": b.databaseHost,
		"MF_METADATA_DB_PORT": "5432",
		"MF_METADATA_DB_USER": settings.DatabaseUser,
		"MF_METADATA_DB_PSWD": fmt.Sprintf("${%s.Password}", b.secretID),
		"MF_METADATA_DB_NAME": settings.DatabaseName,
	}, settings.Env)
}

func addBackingResources(c *compiler.Compiler, settings Settings, shared compiler.Shared) (backingResources, error) {
	g := c.Graph()

	sgID := resource.LogicalID(settings.Name, "database", "sg")
	err := g.Add(&resource.Resource{
		LogicalID: sgID,
		Kind:      resource.KindSecurityGroup,
		Properties: map[string]any{
			"NetworkSegment": shared.SegmentID,
			"Ingress": []map[string]any{
				{"Port": 5432, "Protocol": "tcp", "Cidr": settings.VpcCidr},
			},
		},
		DependsOn: []string{shared.SegmentID},
	})
	if err != nil {
		return backingResources{}, err
	}

	secretID := resource.LogicalID(settings.Name, "database", "secret")
	err = g.Add(&resource.Resource{
		LogicalID: secretID,
		Kind:      resource.KindSecret,
		Properties: map[string]any{
			"Username":          settings.DatabaseUser,
			"ExcludeCharacters": `"@/\`,
		},
	})
	if err != nil {
		return backingResources{}, err
	}

	databaseID := resource.LogicalID(settings.Name, "database")
	err = g.Add(&resource.Resource{
		LogicalID: databaseID,
		Kind:      resource.KindDatabase,
		Properties: map[string]any{
			"Engine":         "postgres",
			"EngineVersion":  "11",
			"InstanceClass":  "db.t3.small",
			"DatabaseName":   settings.DatabaseName,
			"Credentials":    secretID,
			"SecurityGroups": []string{sgID},
			"Subnets":        "private-with-egress",
		},
		DependsOn: []string{shared.SegmentID, sgID, secretID},
	})
	if err != nil {
		return backingResources{}, err
	}

	bucketID := resource.LogicalID(settings.Name, "artifact", "bucket")
	err = g.Add(&resource.Resource{
		LogicalID: bucketID,
		Kind:      resource.KindBucket,
		Properties: map[string]any{
			"Encryption":        "s3-managed",
			"BlockPublicAccess": true,
		},
	})
	if err != nil {
		return backingResources{}, err
	}

	tableID := resource.LogicalID(settings.Name, "state", "table")
	err = g.Add(&resource.Resource{
		LogicalID: tableID,
		Kind:      resource.KindStateTable,
		Properties: map[string]any{
			"HashKey":      "pathspec",
			"TtlAttribute": "ttl",
			"BillingMode":  "pay-per-request",
		},
	})
	if err != nil {
		return backingResources{}, err
	}

	if settings.EnableBatch {
		if err := addBatchCompute(g, settings, shared); err != nil {
			return backingResources{}, err
		}
	}

	return backingResources{
		databaseID:    databaseID,
		secretID:      secretID,
		bucketID:      bucketID,
		databaseHost:  fmt.Sprintf("${%s.Endpoint}", databaseID),
		datastoreRoot: fmt.Sprintf("s3://${%s.Name}/flow", bucketID),
	}, nil
}

func addBatchCompute(g *resource.Graph, settings Settings, shared compiler.Shared) error {
	ceID := resource.LogicalID(settings.Name, "batch", "compute", "env")
	err := g.Add(&resource.Resource{
		LogicalID: ceID,
		Kind:      resource.KindComputeEnvironment,
		Properties: map[string]any{
			"Type":           "FARGATE",
			"MaxVCpus":       settings.BatchMaxVCPUs,
			"NetworkSegment": shared.SegmentID,
			"Subnets":        "private-with-egress",
		},
		DependsOn: []string{shared.SegmentID},
	})
	if err != nil {
		return err
	}

	queueID := resource.LogicalID(settings.Name, "job", "queue")
	return g.Add(&resource.Resource{
		LogicalID: queueID,
		Kind:      resource.KindJobQueue,
		Properties: map[string]any{
			"Priority":            1,
			"ComputeEnvironments": []string{ceID},
		},
		DependsOn: []string{ceID},
	})
}

func compilePreset(c *compiler.Compiler, preset Preset, env map[string]string, settings Settings, shared compiler.Shared) (*compiler.DeployedService, error) {
	return c.CompileService(preset.Spec(env, settings.Public), shared)
}
