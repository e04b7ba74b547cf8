// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version <path>",
		Short: "Print the Go toolchain version stamped into the binary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openReader(args[0])
			if err != nil {
				return err
			}
			defer r.Close()

			ver, ok := r.Version()
			if !ok {
				return fmt.Errorf("gosymbol: version could not be determined for %s", args[0])
			}
			color.New(color.FgGreen, color.Bold).Println(ver.String())
			return nil
		},
	}
}
