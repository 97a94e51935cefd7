package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trly/flow-ops/internal/config"
)

func testService(t *testing.T) *Service {
	t.Helper()
	provider := config.NewDefaultConfigProvider()
	provider.SetConfig(&config.Settings{OutputDir: t.TempDir()})
	return NewService(provider)
}

func TestArtifactPaths(t *testing.T) {
	s := testService(t)
	outputDir := s.configProvider.GetConfig().OutputDir

	assert.Equal(t, filepath.Join(outputDir, "flow", "template.yaml"), s.GetTemplatePath("flow"))
	assert.Equal(t, filepath.Join(outputDir, "flow", "env", "metadata-service.env"),
		s.GetEnvFilePath("flow", "metadata-service"))
}

func TestHasArtifactChanged(t *testing.T) {
	s := testService(t)
	path := filepath.Join(t.TempDir(), "template.yaml")

	assert.True(t, s.HasArtifactChanged(path, "resources: []\n"), "missing file counts as changed")

	require.NoError(t, s.WriteArtifactFile(path, "resources: []\n"))
	assert.False(t, s.HasArtifactChanged(path, "resources: []\n"))
	assert.True(t, s.HasArtifactChanged(path, "resources:\n  - id: FlowVpc\n"))
}

func TestWriteArtifactFileCreatesParents(t *testing.T) {
	s := testService(t)
	path := filepath.Join(t.TempDir(), "flow", "env", "metadata-service.env")

	require.NoError(t, s.WriteArtifactFile(path, "LOGLEVEL=INFO\n"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "LOGLEVEL=INFO\n", string(content))
}

func TestGetContentHashStable(t *testing.T) {
	a := fmt.Sprintf("%x", GetContentHash("resources: []\n"))
	b := fmt.Sprintf("%x", GetContentHash("resources: []\n"))
	c := fmt.Sprintf("%x", GetContentHash("outputs: {}\n"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
