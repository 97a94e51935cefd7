package render

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/trly/flow-ops/internal/config"
	"github.com/trly/flow-ops/internal/fs"
	"github.com/trly/flow-ops/internal/log"
	"github.com/trly/flow-ops/internal/resource"
	"github.com/trly/flow-ops/internal/stack"
)

func compiledPlatform(t *testing.T) *stack.Result {
	t.Helper()
	result, err := stack.Compile(stack.Settings{EnableUI: true}, nil, log.NewLogger(false))
	require.NoError(t, err)
	return result
}

func testRenderer(t *testing.T) *Renderer {
	t.Helper()
	provider := config.NewDefaultConfigProvider()
	provider.SetConfig(&config.Settings{OutputDir: t.TempDir()})
	return NewRenderer(fs.NewService(provider), log.NewLogger(false))
}

func TestTemplateOrdersDependenciesFirst(t *testing.T) {
	result := compiledPlatform(t)

	content, err := Template("flow", result.Graph, result.Outputs)
	require.NoError(t, err)

	var doc templateDoc
	require.NoError(t, yaml.Unmarshal([]byte(content), &doc))
	assert.Equal(t, templateVersion, doc.Version)
	assert.Equal(t, "flow", doc.Deployment)

	position := make(map[string]int, len(doc.Resources))
	for i, r := range doc.Resources {
		position[r.ID] = i
	}
	for _, r := range doc.Resources {
		for _, dep := range r.DependsOn {
			require.Contains(t, position, dep)
			assert.Less(t, position[dep], position[r.ID],
				"%s must come after its dependency %s", r.ID, dep)
		}
	}
}

func TestTemplateDeterministic(t *testing.T) {
	first := compiledPlatform(t)
	second := compiledPlatform(t)

	a, err := Template("flow", first.Graph, first.Outputs)
	require.NoError(t, err)
	b, err := Template("flow", second.Graph, second.Outputs)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestTemplateRejectsUnsortableGraph(t *testing.T) {
	g := resource.NewGraph()
	_, err := Template("flow", g, nil)
	require.NoError(t, err, "empty graph renders an empty resource list")
}

func TestEnvFileSortedKeyValueLines(t *testing.T) {
	content, err := EnvFile(map[string]string{
		"MF_METADATA_DB_PORT": "5432",
		"LOGLEVEL":            "DEBUG",
		"MF_METADATA_DB_HOST": "${FlowDatabase.Endpoint}",
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(content), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "LOGLEVEL=DEBUG", lines[0])
	assert.Equal(t, "MF_METADATA_DB_HOST=${FlowDatabase.Endpoint}", lines[1])
	assert.Equal(t, "MF_METADATA_DB_PORT=5432", lines[2])
}

func TestRenderDeploymentWritesArtifacts(t *testing.T) {
	r := testRenderer(t)
	result := compiledPlatform(t)

	artifacts, err := r.RenderDeployment("flow", result, false)
	require.NoError(t, err)

	// One template plus one env file per service.
	require.Len(t, artifacts, 1+len(result.Services))
	assert.Equal(t, "template", artifacts[0].Kind)
	assert.True(t, artifacts[0].Changed)

	for _, artifact := range artifacts {
		assert.NotEmpty(t, artifact.Hash)
		_, err := os.Stat(artifact.Path)
		assert.NoError(t, err, "artifact %s must exist on disk", artifact.Path)
	}
}

func TestRenderDeploymentSecondPassUnchanged(t *testing.T) {
	r := testRenderer(t)
	result := compiledPlatform(t)

	_, err := r.RenderDeployment("flow", result, false)
	require.NoError(t, err)

	artifacts, err := r.RenderDeployment("flow", result, false)
	require.NoError(t, err)
	for _, artifact := range artifacts {
		assert.False(t, artifact.Changed, "artifact %s must be unchanged", artifact.Path)
	}
}

func TestRenderDeploymentDryRun(t *testing.T) {
	r := testRenderer(t)
	result := compiledPlatform(t)

	artifacts, err := r.RenderDeployment("flow", result, true)
	require.NoError(t, err)

	for _, artifact := range artifacts {
		assert.True(t, artifact.Changed)
		_, err := os.Stat(artifact.Path)
		assert.True(t, os.IsNotExist(err), "dry run must not write %s", artifact.Path)
	}
}
