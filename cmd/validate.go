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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trly/flow-ops/internal/log"
	"github.com/trly/flow-ops/internal/manifest"
	"github.com/trly/flow-ops/internal/stack"
)

// ValidateCommand represents the validate command for the flow-ops CLI.
type ValidateCommand struct{}

var validateManifestPath string

// GetCobraCommand returns the cobra command for validating a manifest.
func (c *ValidateCommand) GetCobraCommand() *cobra.Command {
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validates a deployment manifest without writing any artifacts.",
		Long: `Validates a deployment manifest without writing any artifacts.

The manifest is loaded and compiled in memory; every service spec runs through
the full validation pipeline. Nothing is written to disk or recorded.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := manifest.Load(cmd.Context(), validateManifestPath)
			if err != nil {
				return err
			}

			result, err := stack.Compile(stackSettings(m), m.ServiceSpecs(), log.GetLogger())
			if err != nil {
				return fmt.Errorf("deployment %s is invalid: %w", m.Name, err)
			}

			fmt.Printf("Deployment %s is valid: %d services, %d resources\n",
				m.Name, len(result.Services), result.Graph.Len())
			return nil
		},
	}

	validateCmd.Flags().StringVarP(&validateManifestPath, "file", "f", ".", "Path to the deployment manifest or its directory.")

	return validateCmd
}
