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
	"os"

	"github.com/spf13/cobra"

	"github.com/trly/flow-ops/internal/config"
	"github.com/trly/flow-ops/internal/log"
	"github.com/trly/flow-ops/internal/repository"
)

// SyncCommand represents the sync command for the flow-ops CLI.
type SyncCommand struct{}

var (
	dryRun   bool
	repoName string
	force    bool
)

// GetCobraCommand returns the cobra command for sync operations.
func (c *SyncCommand) GetCobraCommand() *cobra.Command {
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronizes manifest repositories and synthesizes each deployment they define.",
		Long: `Synchronizes manifest repositories and synthesizes each deployment they define.

Repositories are defined in the flow-ops config file as a list of Repository objects.

---
repositories:
  - name: platform-deployments
    url: https://github.com/trly/flow-ops-deployments.git
    ref: main
    manifestDir: deployments`,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := os.MkdirAll(cfg.RepositoryDir, 0750); err != nil {
				log.GetLogger().Error("Failed to create repository directory", "error", err)
				os.Exit(1)
			}

			c.syncRepositories(cmd)
		},
	}

	syncCmd.Flags().BoolVarP(&dryRun, "dry-run", "d", false, "Perform a dry run without making any changes.")
	syncCmd.Flags().StringVarP(&repoName, "repo", "r", "", "Synchronize a single, named, repository.")
	syncCmd.Flags().BoolVarP(&force, "force", "f", false, "Force synthesis even if the repository has not changed.")

	return syncCmd
}

func (c *SyncCommand) syncRepositories(cmd *cobra.Command) {
	logger := log.GetLogger()
	syncer := repository.NewGitSyncer(config.DefaultProvider(), logger)

	repos := make([]config.Repository, 0, len(cfg.Repositories))
	for _, repoConfig := range cfg.Repositories {
		if repoName != "" && repoConfig.Name != repoName {
			logger.Debug("Skipping repository as it does not match the specified name", "repo", repoConfig.Name)
			continue
		}
		repos = append(repos, repoConfig)
	}

	results, err := syncer.SyncAll(cmd.Context(), repos)
	if err != nil {
		logger.Error("Repository synchronization aborted", "error", err)
		os.Exit(1)
	}

	for _, result := range results {
		if !result.Success {
			logger.Error("Failed to sync repository", "name", result.Repository.Name, "error", result.Error)
			continue
		}

		if !result.Changed && !force {
			logger.Info("Repository unchanged, skipping synthesis", "name", result.Repository.Name)
			continue
		}

		logger.Debug("Synthesizing manifests", "repo", result.Repository.Name, "dir", result.ManifestPath)
		if err := synthesizeManifest(cmd.Context(), result.ManifestPath, dryRun); err != nil {
			logger.Error("Failed to synthesize deployment",
				"repo", result.Repository.Name, "error", err)
		}
	}
}
