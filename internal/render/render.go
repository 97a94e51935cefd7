// Package render serializes a compiled deployment into its durable
// artifacts: one resource template per deployment and one environment
// file per service, written only when content changed.
package render

import (
	"bytes"
	"fmt"
	"maps"
	"slices"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"github.com/trly/flow-ops/internal/fs"
	"github.com/trly/flow-ops/internal/log"
	"github.com/trly/flow-ops/internal/resource"
	"github.com/trly/flow-ops/internal/stack"
)

const templateVersion = 1

func init() {
	// Env files are consumed as KEY=VALUE pairs, no alignment padding.
	ini.PrettyFormat = false
}

type templateResource struct {
	ID         string         `yaml:"id"`
	Kind       string         `yaml:"kind"`
	Properties map[string]any `yaml:"properties,omitempty"`
	DependsOn  []string       `yaml:"dependsOn,omitempty"`
}

type templateDoc struct {
	Version    int                `yaml:"version"`
	Deployment string             `yaml:"deployment"`
	Resources  []templateResource `yaml:"resources"`
	Outputs    map[string]string  `yaml:"outputs,omitempty"`
}

// Template renders the resource graph as a YAML deployment template.
// Resources appear in dependency order so a provisioner applying them
// top to bottom never references a resource before its definition.
func Template(deployment string, g *resource.Graph, outputs map[string]string) (string, error) {
	sorted, err := g.Sorted()
	if err != nil {
		return "", fmt.Errorf("ordering resources for %s: %w", deployment, err)
	}

	doc := templateDoc{
		Version:    templateVersion,
		Deployment: deployment,
		Resources:  make([]templateResource, 0, len(sorted)),
		Outputs:    outputs,
	}
	for _, r := range sorted {
		doc.Resources = append(doc.Resources, templateResource{
			ID:         r.LogicalID,
			Kind:       string(r.Kind),
			Properties: r.Properties,
			DependsOn:  r.DependsOn,
		})
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("encoding template for %s: %w", deployment, err)
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// EnvFile renders a service environment as KEY=VALUE lines with keys
// in sorted order for deterministic output.
func EnvFile(env map[string]string) (string, error) {
	file := ini.Empty()
	section := file.Section("")
	for _, key := range slices.Sorted(maps.Keys(env)) {
		if _, err := section.NewKey(key, env[key]); err != nil {
			return "", fmt.Errorf("rendering env key %s: %w", key, err)
		}
	}

	var buf bytes.Buffer
	if _, err := file.WriteTo(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Artifact describes one synthesized file and whether this render pass
// rewrote it.
type Artifact struct {
	Path    string
	Kind    string // "template" or "env"
	Service string // empty for the template
	Hash    string
	Changed bool
}

// Renderer writes deployment artifacts through the filesystem service.
type Renderer struct {
	fsService *fs.Service
	logger    log.Logger
}

// NewRenderer creates a renderer writing through the given filesystem service.
func NewRenderer(fsService *fs.Service, logger log.Logger) *Renderer {
	return &Renderer{fsService: fsService, logger: logger}
}

// RenderDeployment renders the template and every service env file for
// a compiled deployment. Unchanged files are left untouched; with
// dryRun set nothing is written at all.
func (r *Renderer) RenderDeployment(deployment string, result *stack.Result, dryRun bool) ([]Artifact, error) {
	template, err := Template(deployment, result.Graph, result.Outputs)
	if err != nil {
		return nil, err
	}

	artifacts := make([]Artifact, 0, len(result.Services)+1)
	templateArtifact, err := r.emit(r.fsService.GetTemplatePath(deployment), "template", "", template, dryRun)
	if err != nil {
		return nil, err
	}
	artifacts = append(artifacts, templateArtifact)

	for _, name := range slices.Sorted(maps.Keys(result.Services)) {
		content, err := EnvFile(result.Services[name].Env)
		if err != nil {
			return nil, err
		}
		artifact, err := r.emit(r.fsService.GetEnvFilePath(deployment, name), "env", name, content, dryRun)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, artifact)
	}

	return artifacts, nil
}

func (r *Renderer) emit(path, kind, service, content string, dryRun bool) (Artifact, error) {
	artifact := Artifact{
		Path:    path,
		Kind:    kind,
		Service: service,
		Hash:    fmt.Sprintf("%x", fs.GetContentHash(content)),
		Changed: r.fsService.HasArtifactChanged(path, content),
	}

	if !artifact.Changed || dryRun {
		return artifact, nil
	}

	if err := r.fsService.WriteArtifactFile(path, content); err != nil {
		return Artifact{}, err
	}
	r.logger.Info("Wrote artifact", "path", path, "kind", kind)
	return artifact, nil
}
