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

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/trly/flow-ops/internal/config"
	"github.com/trly/flow-ops/internal/log"
	"github.com/trly/flow-ops/internal/state"
)

// RootCommand represents the root command for the flow-ops CLI.
type RootCommand struct{}

var (
	cfg            *config.Settings
	userMode       bool
	configFilePath string
	dbPath         string
	outputDir      string
	repositoryDir  string
	verbose        bool
)

// GetCobraCommand returns the cobra root command for the flow-ops CLI.
func (c *RootCommand) GetCobraCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "flow-ops",
		Short: "Flow-Ops compiles workflow platform manifests into declarative deployment templates.",
		Long: `Flow-Ops compiles workflow platform manifests into declarative deployment templates.
It synchronizes deployment manifests from Git repositories, compiles each into a
resource template plus per-service environment files, and tracks what it synthesized.`,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if configFilePath != "" {
				config.SetConfigFilePath(configFilePath)
			}
			cfg = config.InitConfig()
			log.Init(verbose)

			if verbose {
				fmt.Printf("%s using config: %s\n\n", cmd.Root().Use, viper.GetViper().ConfigFileUsed())
				cfg.Verbose = verbose
			}

			if userMode {
				cfg.UserMode = userMode
				cfg.RepositoryDir = os.ExpandEnv(config.DefaultUserRepositoryDir)
				cfg.OutputDir = os.ExpandEnv(config.DefaultUserOutputDir)
				if dbPath == "" {
					cfg.StateDBPath = os.ExpandEnv(config.DefaultUserStateDBPath)
				}
			}

			if repositoryDir != "" {
				cfg.RepositoryDir = repositoryDir
			}

			if outputDir != "" {
				cfg.OutputDir = outputDir
			}

			if dbPath != "" {
				cfg.StateDBPath = dbPath
			}

			if err := state.Up(cfg); err != nil {
				log.GetLogger().Error("Failed to initialize state database", "error", err)
				os.Exit(1)
			}
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&userMode, "user", "u", false, "Run in user mode")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configFilePath, "config", "", "Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db-path", "", "Path to the state database file")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output-dir", "", "Path to the artifact output directory")
	rootCmd.PersistentFlags().StringVar(&repositoryDir, "repository-dir", "", "Path to the repository directory")

	rootCmd.AddCommand(
		(&ConfigCommand{}).GetCobraCommand(),
		(&SynthCommand{}).GetCobraCommand(),
		(&SyncCommand{}).GetCobraCommand(),
		(&ValidateCommand{}).GetCobraCommand(),
		(&ListCommand{}).GetCobraCommand(),
		(&UpdateCommand{}).GetCobraCommand(),
		(&VersionCommand{}).GetCobraCommand(),
	)

	return rootCmd
}
