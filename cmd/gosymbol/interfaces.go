// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newInterfacesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "interfaces <path>",
		Short: "List concrete/interface type pairs from the itab table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			r, err := openReader(args[0])
			if err != nil {
				return err
			}
			defer r.Close()

			ifaces, ok := r.Interfaces(cfg.Base)
			if !ok {
				return fmt.Errorf("gosymbol: interface table unavailable for %s", args[0])
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Concrete type", "Interface", "Methods", "Address"})
			for _, iface := range ifaces.All() {
				concrete, _ := iface.ConcreteName()
				ifaceName, _ := iface.InterfaceName()
				table.Append([]string{
					concrete,
					ifaceName,
					fmt.Sprintf("%d", iface.MethodCount()),
					fmt.Sprintf("%#x", iface.Address()),
				})
			}
			table.Render()
			return nil
		},
	}
}
