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
	"github.com/spf13/cobra"
)

// SynthCommand represents the synth command for the flow-ops CLI.
type SynthCommand struct{}

var (
	synthManifestPath string
	synthDryRun       bool
)

// GetCobraCommand returns the cobra command for synthesizing a local manifest.
func (c *SynthCommand) GetCobraCommand() *cobra.Command {
	synthCmd := &cobra.Command{
		Use:   "synth",
		Short: "Compiles a deployment manifest into a resource template and env files.",
		Long: `Compiles a deployment manifest into a resource template and env files.

The manifest path can be a platform.yaml file or a directory containing one.
Artifacts are written to the output directory; unchanged files are left as is.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return synthesizeManifest(cmd.Context(), synthManifestPath, synthDryRun)
		},
	}

	synthCmd.Flags().StringVarP(&synthManifestPath, "file", "f", ".", "Path to the deployment manifest or its directory.")
	synthCmd.Flags().BoolVarP(&synthDryRun, "dry-run", "d", false, "Compile and report without writing artifacts.")

	return synthCmd
}
