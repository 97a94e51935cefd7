// Package manifest loads deployment manifests from the filesystem and
// converts them into service specs and stack settings.
//
// A deployment manifest is a platform.yaml describing one platform
// deployment: the shared network, the backing database, which built-in
// services to enable, and any extra services to run alongside them.
package manifest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/compose-spec/compose-go/v2/dotenv"
	"gopkg.in/yaml.v3"

	"github.com/trly/flow-ops/internal/compiler"
	"github.com/trly/flow-ops/internal/deploy"
	"github.com/trly/flow-ops/internal/stack"
)

// Manifest file names probed when Load is given a directory, in
// priority order.
var manifestFileNames = []string{
	"platform.yaml",
	"platform.yml",
	"flow-ops.yaml",
	"flow-ops.yml",
}

// Manifest is the parsed deployment manifest.
type Manifest struct {
	Name     string            `yaml:"name"`
	Network  NetworkConfig     `yaml:"network"`
	Database DatabaseConfig    `yaml:"database"`
	UI       ToggleConfig      `yaml:"ui"`
	Auth     *AuthConfig       `yaml:"auth"`
	Batch    BatchConfig       `yaml:"batch"`
	Env      map[string]string `yaml:"env"`
	Services []ServiceConfig   `yaml:"services"`
}

// NetworkConfig selects the address range and exposure of the shared
// network.
type NetworkConfig struct {
	Cidr              string `yaml:"cidr"`
	AvailabilityZones int    `yaml:"availabilityZones"`
	Public            bool   `yaml:"public"`
}

// AuthConfig puts the UI services behind an OIDC login flow.
type AuthConfig struct {
	IssuerURL             string   `yaml:"issuerUrl"`
	ClientID              string   `yaml:"clientId"`
	ClientSecretRef       string   `yaml:"clientSecretRef"`
	Scopes                []string `yaml:"scopes"`
	SessionTimeoutMinutes int      `yaml:"sessionTimeoutMinutes"`
}

// DatabaseConfig names the backing database and its master user.
type DatabaseConfig struct {
	Name string `yaml:"name"`
	User string `yaml:"user"`
}

// ToggleConfig enables or disables an optional platform component.
type ToggleConfig struct {
	Enabled bool `yaml:"enabled"`
}

// BatchConfig configures the optional batch compute environment.
type BatchConfig struct {
	Enabled  bool `yaml:"enabled"`
	MaxVCpus int  `yaml:"maxVcpus"`
}

// ServiceConfig describes one extra service in the manifest.
type ServiceConfig struct {
	Name        string            `yaml:"name"`
	Image       string            `yaml:"image"`
	Build       *BuildConfig      `yaml:"build"`
	Ports       []PortConfig      `yaml:"ports"`
	Command     []string          `yaml:"command"`
	Env         map[string]string `yaml:"env"`
	EnvFiles    []string          `yaml:"envFiles"`
	HealthCheck HealthCheckConfig `yaml:"healthCheck"`
	CPU         int               `yaml:"cpu"`
	MemoryMb    int               `yaml:"memoryMb"`
	Desired     int               `yaml:"desired"`
	Min         int               `yaml:"min"`
	Max         int               `yaml:"max"`
	Scaling     *ScalingConfig    `yaml:"scaling"`
	Network     *ServiceNetwork   `yaml:"network"`
}

// BuildConfig describes a locally built image.
type BuildConfig struct {
	Context    string            `yaml:"context"`
	Dockerfile string            `yaml:"dockerfile"`
	Args       map[string]string `yaml:"args"`
}

// PortConfig maps one listener port to a container port.
type PortConfig struct {
	Listener  int    `yaml:"listener"`
	Container int    `yaml:"container"`
	Path      string `yaml:"path"`
}

// HealthCheckConfig locates the service health endpoint.
type HealthCheckConfig struct {
	Path string `yaml:"path"`
	Port int    `yaml:"port"`
}

// ScalingConfig sets the autoscaling targets and cooldowns.
type ScalingConfig struct {
	CPUPercent             int `yaml:"cpuPercent"`
	MemoryPercent          int `yaml:"memoryPercent"`
	ScaleInCooldownSeconds int `yaml:"scaleInCooldownSeconds"`
	ScaleOutCooldownSecs   int `yaml:"scaleOutCooldownSeconds"`
}

// ServiceNetwork overrides the shared network for one service, either
// by referencing existing resources or by materializing a new range.
// Manifest validation rejects it: services in a deployment always
// attach to the shared platform network. Spec() still converts it for
// callers building ServiceConfig values directly.
type ServiceNetwork struct {
	SegmentID string `yaml:"segmentId"`
	ClusterID string `yaml:"clusterId"`
	Cidr      string `yaml:"cidr"`
}

// Load reads a deployment manifest from the filesystem.
//
// The path argument can be a manifest file or a directory containing
// one of the probed manifest file names. Env files referenced by
// services are resolved relative to the manifest's directory and
// merged beneath their inline env.
func Load(ctx context.Context, path string) (*Manifest, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	pathInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &fileNotFoundError{path: path, cause: err}
		}
		return nil, fmt.Errorf("reading manifest path %s: %w", path, err)
	}

	filePath := path
	if pathInfo.IsDir() {
		filePath = findManifestFile(path)
		if filePath == "" {
			return nil, &fileNotFoundError{path: path, cause: errors.New("no manifest file found")}
		}
	}
	workdir := filepath.Dir(filePath)

	content, err := os.ReadFile(filePath) //nolint:gosec // Operator-supplied manifest path
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", filePath, err)
	}

	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, &invalidYAMLError{cause: err}
	}

	if err := m.validate(); err != nil {
		return nil, err
	}

	for i := range m.Services {
		if err := m.Services[i].resolveEnvFiles(workdir); err != nil {
			return nil, err
		}
	}

	return &m, nil
}

// findManifestFile probes a directory for a manifest file. Returns the
// empty string when none exists.
func findManifestFile(dir string) string {
	for _, name := range manifestFileNames {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

func (m *Manifest) validate() error {
	if m.Name == "" {
		return &validationError{message: "manifest name is required"}
	}
	if m.Auth != nil {
		if m.Auth.IssuerURL == "" || m.Auth.ClientID == "" || m.Auth.ClientSecretRef == "" {
			return &validationError{message: "auth requires issuerUrl, clientId and clientSecretRef"}
		}
		if !m.UI.Enabled {
			return &validationError{message: "auth protects the UI services and requires ui.enabled"}
		}
	}
	seen := make(map[string]bool, len(m.Services))
	for _, svc := range m.Services {
		if svc.Name == "" {
			return &validationError{message: "every service needs a name"}
		}
		if seen[svc.Name] {
			return &validationError{message: fmt.Sprintf("duplicate service name %q", svc.Name)}
		}
		seen[svc.Name] = true
		if svc.Image != "" && svc.Build != nil {
			return &validationError{message: fmt.Sprintf("service %q sets both image and build", svc.Name)}
		}
		if svc.Network != nil {
			if svc.Network.Cidr != "" && svc.Network.SegmentID != "" {
				return &validationError{message: fmt.Sprintf("service %q sets both a network cidr and an existing segment reference", svc.Name)}
			}
			return &validationError{message: fmt.Sprintf("service %q sets its own network source; manifest services attach to the deployment's shared network", svc.Name)}
		}
	}
	return nil
}

// resolveEnvFiles merges the service's env files beneath its inline
// env, later files overriding earlier ones and inline env winning.
func (s *ServiceConfig) resolveEnvFiles(workdir string) error {
	if len(s.EnvFiles) == 0 {
		return nil
	}

	paths := make([]string, 0, len(s.EnvFiles))
	for _, f := range s.EnvFiles {
		if !filepath.IsAbs(f) {
			f = filepath.Join(workdir, f)
		}
		paths = append(paths, f)
	}

	fileEnv, err := dotenv.GetEnvFromFile(map[string]string{}, paths)
	if err != nil {
		return &validationError{message: fmt.Sprintf("loading env files for service %q", s.Name), cause: err}
	}

	merged := make(map[string]string, len(fileEnv)+len(s.Env))
	for k, v := range fileEnv {
		merged[k] = v
	}
	for k, v := range s.Env {
		merged[k] = v
	}
	s.Env = merged
	s.EnvFiles = nil
	return nil
}

// StackSettings converts the manifest's platform sections to stack
// settings.
func (m *Manifest) StackSettings() stack.Settings {
	var auth *compiler.OIDCConfig
	if m.Auth != nil {
		auth = &compiler.OIDCConfig{
			IssuerURL:       m.Auth.IssuerURL,
			ClientID:        m.Auth.ClientID,
			ClientSecretRef: m.Auth.ClientSecretRef,
			Scopes:          m.Auth.Scopes,
			SessionTimeout:  time.Duration(m.Auth.SessionTimeoutMinutes) * time.Minute,
		}
	}

	return stack.Settings{
		Name:              m.Name,
		VpcCidr:           m.Network.Cidr,
		AvailabilityZones: m.Network.AvailabilityZones,
		DatabaseName:      m.Database.Name,
		DatabaseUser:      m.Database.User,
		BatchMaxVCPUs:     m.Batch.MaxVCpus,
		EnableUI:          m.UI.Enabled,
		EnableBatch:       m.Batch.Enabled,
		Public:            m.Network.Public,
		Auth:              auth,
		Env:               m.Env,
	}
}

// ServiceSpecs converts the manifest's extra services to deployable
// service specs.
func (m *Manifest) ServiceSpecs() []deploy.ServiceSpec {
	specs := make([]deploy.ServiceSpec, 0, len(m.Services))
	for _, svc := range m.Services {
		specs = append(specs, svc.Spec())
	}
	return specs
}

// Spec converts one service config to a service spec. Manifests that
// fail spec validation surface the error at compile time, not here.
func (s ServiceConfig) Spec() deploy.ServiceSpec {
	mappings := make([]deploy.PortMapping, 0, len(s.Ports))
	for _, p := range s.Ports {
		mappings = append(mappings, deploy.PortMapping{
			ListenerPort:  p.Listener,
			ContainerPort: p.Container,
			PathPattern:   p.Path,
		})
	}

	var image deploy.ImageSource
	if s.Build != nil {
		image = deploy.LocalBuild{
			Context:    s.Build.Context,
			Dockerfile: s.Build.Dockerfile,
			Args:       s.Build.Args,
		}
	} else {
		image = deploy.RegistryImage{Ref: s.Image}
	}

	var scaling deploy.Scaling
	if s.Scaling != nil {
		scaling = deploy.Scaling{
			TargetCPUPercent:    s.Scaling.CPUPercent,
			TargetMemoryPercent: s.Scaling.MemoryPercent,
			ScaleInCooldown:     time.Duration(s.Scaling.ScaleInCooldownSeconds) * time.Second,
			ScaleOutCooldown:    time.Duration(s.Scaling.ScaleOutCooldownSecs) * time.Second,
		}
	}

	var network deploy.NetworkSource
	if s.Network != nil {
		if s.Network.Cidr != "" {
			network = deploy.NewNetwork{CIDR: s.Network.Cidr}
		} else {
			network = deploy.ExistingNetwork{
				SegmentID: s.Network.SegmentID,
				ClusterID: s.Network.ClusterID,
			}
		}
	}

	return deploy.ServiceSpec{
		Name:            s.Name,
		PortMappings:    mappings,
		Image:           image,
		Command:         s.Command,
		Env:             s.Env,
		HealthCheckPath: s.HealthCheck.Path,
		HealthCheckPort: s.HealthCheck.Port,
		CPU:             s.CPU,
		MemoryMB:        s.MemoryMb,
		DesiredTasks:    s.Desired,
		MinTasks:        s.Min,
		MaxTasks:        s.Max,
		Scaling:         scaling,
		Network:         network,
	}
}
