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
	"time"

	"github.com/fatih/color"
	"github.com/rodaine/table"
	"github.com/spf13/cobra"

	"github.com/trly/flow-ops/internal/state"
	"github.com/trly/flow-ops/internal/util"
)

// ListCommand represents the list command for the flow-ops CLI.
type ListCommand struct{}

var listDeployment string

// GetCobraCommand returns the cobra command for listing synthesized deployments.
func (c *ListCommand) GetCobraCommand() *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Lists deployments synthesized by flow-ops",
		Long: `Lists deployments synthesized by flow-ops.

Without flags every synthesized deployment is listed. With --deployment the
artifacts recorded for that deployment are listed instead.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			db, err := state.Connect(cfg)
			if err != nil {
				return fmt.Errorf("connecting to state database: %w", err)
			}
			defer func() { _ = db.Close() }()

			store := state.NewStore(db)
			if listDeployment != "" {
				return c.listArtifacts(store, listDeployment)
			}
			return c.listDeployments(store)
		},
	}

	listCmd.Flags().StringVarP(&listDeployment, "deployment", "D", "", "List artifacts recorded for a single deployment.")

	return listCmd
}

func (c *ListCommand) listDeployments(store state.Store) error {
	deployments, err := store.FindDeployments()
	if err != nil {
		return err
	}

	byName := make(map[string]state.Deployment, len(deployments))
	names := make([]string, 0, len(deployments))
	for _, d := range deployments {
		byName[d.Name] = d
		names = append(names, d.Name)
	}

	tbl := newTable("Name", "Resources", "Template Hash", "Synthesized")
	util.SortAndIterateSlice(names, func(name string) {
		d := byName[name]
		tbl.AddRow(d.Name, d.ResourceCount, shortHash(d.TemplateHash), d.SynthesizedAt.Format(time.RFC3339))
	})
	tbl.Print()

	return nil
}

func (c *ListCommand) listArtifacts(store state.Store, deployment string) error {
	artifacts, err := store.FindArtifacts(deployment)
	if err != nil {
		return err
	}

	tbl := newTable("Kind", "Service", "Path", "Hash")
	for _, a := range artifacts {
		tbl.AddRow(a.Kind, a.Service, a.Path, shortHash(a.Hash))
	}
	tbl.Print()

	return nil
}

func newTable(columns ...interface{}) table.Table {
	headerFmt := color.New(color.FgGreen, color.Underline).SprintfFunc()
	columnFmt := color.New(color.FgYellow).SprintfFunc()
	tbl := table.New(columns...)
	tbl.WithHeaderFormatter(headerFmt).WithFirstColumnFormatter(columnFmt)
	return tbl
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
