package manifest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trly/flow-ops/internal/deploy"
)

const fullManifest = `name: flow
network:
  cidr: 10.20.0.0/16
  availabilityZones: 3
  public: true
database:
  name: metaflow
  user: master
ui:
  enabled: true
batch:
  enabled: true
  maxVcpus: 32
env:
  LOGLEVEL: INFO
services:
  - name: event-relay
    image: example.com/event-relay:1.0
    ports:
      - listener: 8100
        container: 9100
        path: /events/*
    healthCheck:
      path: /healthz
    cpu: 256
    memoryMb: 512
    desired: 1
    min: 1
    max: 2
    scaling:
      cpuPercent: 60
      scaleOutCooldownSeconds: 30
`

func writeManifest(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadFullManifest(t *testing.T) {
	path := writeManifest(t, "platform.yaml", fullManifest)

	m, err := Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "flow", m.Name)

	settings := m.StackSettings()
	assert.Equal(t, "10.20.0.0/16", settings.VpcCidr)
	assert.Equal(t, 3, settings.AvailabilityZones)
	assert.True(t, settings.Public)
	assert.True(t, settings.EnableUI)
	assert.True(t, settings.EnableBatch)
	assert.Equal(t, 32, settings.BatchMaxVCPUs)
	assert.Equal(t, "INFO", settings.Env["LOGLEVEL"])

	specs := m.ServiceSpecs()
	require.Len(t, specs, 1)
	spec := specs[0]
	assert.Equal(t, "event-relay", spec.Name)
	require.Len(t, spec.PortMappings, 1)
	assert.Equal(t, 8100, spec.PortMappings[0].ListenerPort)
	assert.Equal(t, 9100, spec.PortMappings[0].ContainerPort)
	assert.Equal(t, "/events/*", spec.PortMappings[0].PathPattern)
	assert.Equal(t, deploy.RegistryImage{Ref: "example.com/event-relay:1.0"}, spec.Image)
	assert.Equal(t, 60, spec.Scaling.TargetCPUPercent)
	assert.Equal(t, int64(30), int64(spec.Scaling.ScaleOutCooldown.Seconds()))

	_, err = deploy.Normalize(spec)
	assert.NoError(t, err)
}

func TestLoadFromDirectory(t *testing.T) {
	path := writeManifest(t, "platform.yaml", fullManifest)

	m, err := Load(context.Background(), filepath.Dir(path))
	require.NoError(t, err)
	assert.Equal(t, "flow", m.Name)
}

func TestLoadMissingManifest(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, IsFileNotFoundError(err))

	_, err = Load(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.True(t, IsFileNotFoundError(err))
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeManifest(t, "platform.yaml", "name: [unclosed\n")
	_, err := Load(context.Background(), path)
	require.Error(t, err)
	assert.True(t, IsInvalidYAMLError(err))
}

func TestLoadUnknownFieldRejected(t *testing.T) {
	path := writeManifest(t, "platform.yaml", "name: flow\nbogus: true\n")
	_, err := Load(context.Background(), path)
	require.Error(t, err)
	assert.True(t, IsInvalidYAMLError(err))
}

func TestLoadValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "missing manifest name",
			content: "network:\n  cidr: 10.0.0.0/16\n",
		},
		{
			name:    "unnamed service",
			content: "name: flow\nservices:\n  - image: example.com/x:1\n",
		},
		{
			name:    "duplicate service names",
			content: "name: flow\nservices:\n  - name: a\n    image: x\n  - name: a\n    image: y\n",
		},
		{
			name:    "image and build together",
			content: "name: flow\nservices:\n  - name: a\n    image: x\n    build:\n      context: .\n",
		},
		{
			name:    "network cidr and segment together",
			content: "name: flow\nservices:\n  - name: a\n    image: x\n    network:\n      cidr: 10.30.0.0/16\n      segmentId: vpc-1234\n",
		},
		{
			name:    "service-level network source",
			content: "name: flow\nservices:\n  - name: a\n    image: x\n    network:\n      cidr: 10.30.0.0/16\n",
		},
		{
			name:    "auth without ui",
			content: "name: flow\nauth:\n  issuerUrl: https://tenant.auth0.com\n  clientId: id\n  clientSecretRef: ref\n",
		},
		{
			name:    "auth missing client secret",
			content: "name: flow\nui:\n  enabled: true\nauth:\n  issuerUrl: https://tenant.auth0.com\n  clientId: id\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeManifest(t, "platform.yaml", tc.content)
			_, err := Load(context.Background(), path)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestLoadCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Load(ctx, t.TempDir())
	require.ErrorIs(t, err, context.Canceled)
}

func TestResolveEnvFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "relay.env"),
		[]byte("LOGLEVEL=DEBUG\nRELAY_TOPIC=events\n"), 0600))

	content := `name: flow
services:
  - name: event-relay
    image: example.com/event-relay:1.0
    envFiles:
      - relay.env
    env:
      LOGLEVEL: INFO
    ports:
      - listener: 8100
        container: 9100
    healthCheck:
      path: /healthz
    cpu: 256
    memoryMb: 512
    desired: 1
    min: 1
    max: 1
`
	path := filepath.Join(dir, "platform.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	m, err := Load(context.Background(), path)
	require.NoError(t, err)

	env := m.Services[0].Env
	assert.Equal(t, "INFO", env["LOGLEVEL"], "inline env wins over env files")
	assert.Equal(t, "events", env["RELAY_TOPIC"])
}

func TestResolveEnvFilesMissingFile(t *testing.T) {
	content := "name: flow\nservices:\n  - name: a\n    image: x\n    envFiles: [missing.env]\n"
	path := writeManifest(t, "platform.yaml", content)

	_, err := Load(context.Background(), path)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestLoadAuthSettings(t *testing.T) {
	content := `name: flow
ui:
  enabled: true
auth:
  issuerUrl: https://tenant.auth0.com
  clientId: client-id
  clientSecretRef: secret-ref
  scopes: [openid, email]
  sessionTimeoutMinutes: 60
`
	path := writeManifest(t, "platform.yaml", content)

	m, err := Load(context.Background(), path)
	require.NoError(t, err)

	settings := m.StackSettings()
	require.NotNil(t, settings.Auth)
	assert.Equal(t, "https://tenant.auth0.com", settings.Auth.IssuerURL)
	assert.Equal(t, "client-id", settings.Auth.ClientID)
	assert.Equal(t, "secret-ref", settings.Auth.ClientSecretRef)
	assert.Equal(t, []string{"openid", "email"}, settings.Auth.Scopes)
	assert.Equal(t, 60*time.Minute, settings.Auth.SessionTimeout)
}

func TestServiceNetworkConversion(t *testing.T) {
	existing := ServiceConfig{Name: "a", Image: "x", Network: &ServiceNetwork{SegmentID: "seg-1", ClusterID: "clu-1"}}
	assert.Equal(t, deploy.ExistingNetwork{SegmentID: "seg-1", ClusterID: "clu-1"}, existing.Spec().Network)

	fresh := ServiceConfig{Name: "a", Image: "x", Network: &ServiceNetwork{Cidr: "10.30.0.0/16"}}
	assert.Equal(t, deploy.NewNetwork{CIDR: "10.30.0.0/16"}, fresh.Spec().Network)

	none := ServiceConfig{Name: "a", Image: "x"}
	assert.Nil(t, none.Spec().Network)
}
