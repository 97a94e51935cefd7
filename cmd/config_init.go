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
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/trly/flow-ops/internal/config"
)

// ConfigInitOptions holds config init command options.
type ConfigInitOptions struct {
	Force bool
}

// ConfigInitDeps holds config init dependencies for testing.
type ConfigInitDeps struct {
	UserHomeDir func() (string, error)
	MkdirAll    func(string, os.FileMode) error
	WriteFile   func(string, []byte, os.FileMode) error
}

// ConfigInitCommand represents the config init command.
type ConfigInitCommand struct{}

// GetCobraCommand returns the cobra command for config init.
func (c *ConfigInitCommand) GetCobraCommand() *cobra.Command {
	var opts ConfigInitOptions

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a default configuration file",
		Long:  "Create a default configuration file in the user configuration directory with an example repository",
		RunE: func(_ *cobra.Command, _ []string) error {
			return c.Run(opts, c.buildDeps())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	initCmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "Overwrite existing configuration file")

	return initCmd
}

// Run executes the init command with injected dependencies.
func (c *ConfigInitCommand) Run(opts ConfigInitOptions, deps ConfigInitDeps) error {
	homeDir, err := deps.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get user home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".config", "flow-ops")
	configFile := filepath.Join(configDir, "config.yaml")

	if _, err := os.Stat(configFile); err == nil && !opts.Force {
		return fmt.Errorf("configuration file already exists at %s, use --force to overwrite", configFile)
	}

	if err := deps.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", configDir, err)
	}

	defaultConfig := &config.Settings{
		Repositories: []config.Repository{
			{
				Name:        "flow-ops-examples",
				URL:         "https://github.com/trly/flow-ops.git",
				Reference:   "main",
				ManifestDir: "examples",
			},
		},
	}

	data, err := yaml.Marshal(defaultConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := deps.WriteFile(configFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", configFile, err)
	}

	fmt.Printf("Configuration file created at %s\n", configFile)
	return nil
}

// buildDeps creates production dependencies for the init command.
func (c *ConfigInitCommand) buildDeps() ConfigInitDeps {
	return ConfigInitDeps{
		UserHomeDir: os.UserHomeDir,
		MkdirAll:    os.MkdirAll,
		WriteFile:   os.WriteFile,
	}
}
