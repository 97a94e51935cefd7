// Package cmd provides the command line interface for flow-ops
/*
Copyright © 2025 Travis Lyons travis.lyons@gmail.com

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"context"
	"fmt"

	"github.com/trly/flow-ops/internal/config"
	"github.com/trly/flow-ops/internal/fs"
	"github.com/trly/flow-ops/internal/log"
	"github.com/trly/flow-ops/internal/manifest"
	"github.com/trly/flow-ops/internal/render"
	"github.com/trly/flow-ops/internal/stack"
	"github.com/trly/flow-ops/internal/state"
)

// synthesizeManifest compiles one deployment manifest into its
// artifacts and records the result in the state database. With dryRun
// set nothing is written and nothing is recorded.
func synthesizeManifest(ctx context.Context, manifestPath string, dryRun bool) error {
	logger := log.GetLogger()

	m, err := manifest.Load(ctx, manifestPath)
	if err != nil {
		return err
	}

	result, err := stack.Compile(stackSettings(m), m.ServiceSpecs(), logger)
	if err != nil {
		return fmt.Errorf("compiling deployment %s: %w", m.Name, err)
	}

	fsService := fs.NewServiceWithLogger(config.DefaultProvider(), logger)
	renderer := render.NewRenderer(fsService, logger)

	artifacts, err := renderer.RenderDeployment(m.Name, result, dryRun)
	if err != nil {
		return fmt.Errorf("rendering deployment %s: %w", m.Name, err)
	}

	changed := 0
	for _, artifact := range artifacts {
		if artifact.Changed {
			changed++
		}
	}
	logger.Info("Synthesized deployment",
		"deployment", m.Name,
		"resources", result.Graph.Len(),
		"artifacts", len(artifacts),
		"changed", changed)

	if dryRun {
		logger.Info("Dry-run: state not recorded", "deployment", m.Name)
		return nil
	}

	return recordSynthesis(m.Name, result, artifacts)
}

// stackSettings fills manifest stack settings from the flow-ops config
// where the manifest leaves them unset.
func stackSettings(m *manifest.Manifest) stack.Settings {
	settings := m.StackSettings()
	if settings.AvailabilityZones == 0 && cfg != nil {
		settings.AvailabilityZones = cfg.AvailabilityZones
	}
	return settings
}

func recordSynthesis(deployment string, result *stack.Result, artifacts []render.Artifact) error {
	db, err := state.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connecting to state database: %w", err)
	}
	defer func() { _ = db.Close() }()

	store := state.NewStore(db)

	var templateHash string
	for _, artifact := range artifacts {
		if artifact.Kind == "template" {
			templateHash = artifact.Hash
			break
		}
	}

	if _, err := store.RecordDeployment(&state.Deployment{
		Name:          deployment,
		TemplateHash:  templateHash,
		ResourceCount: result.Graph.Len(),
	}); err != nil {
		return fmt.Errorf("recording deployment %s: %w", deployment, err)
	}

	for _, artifact := range artifacts {
		if _, err := store.RecordArtifact(&state.Artifact{
			Deployment: deployment,
			Path:       artifact.Path,
			Kind:       artifact.Kind,
			Service:    artifact.Service,
			Hash:       artifact.Hash,
		}); err != nil {
			return fmt.Errorf("recording artifact %s: %w", artifact.Path, err)
		}
	}

	return nil
}
