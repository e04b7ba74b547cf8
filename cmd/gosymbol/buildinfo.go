// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newBuildInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "buildinfo <path>",
		Short: "Print the module path, version, and dependencies from .go.buildinfo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openReader(args[0])
			if err != nil {
				return err
			}
			defer r.Close()

			bi, ok := r.BuildInfo()
			if !ok {
				return fmt.Errorf("gosymbol: build info unavailable for %s", args[0])
			}

			color.New(color.FgCyan, color.Bold).Printf("%s %s\n", bi.ModuleInfo.Main.Path, bi.ModuleInfo.Main.Version)
			fmt.Printf("go version: %s\n", bi.Version)

			if len(bi.ModuleInfo.Deps) == 0 {
				return nil
			}
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Dependency", "Version", "Replaced by"})
			for _, dep := range bi.ModuleInfo.Deps {
				replace := ""
				if dep.Replace != nil {
					replace = fmt.Sprintf("%s %s", dep.Replace.Path, dep.Replace.Version)
				}
				table.Append([]string{dep.Path, dep.Version, replace})
			}
			table.Render()
			return nil
		},
	}
}
