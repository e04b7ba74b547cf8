// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/yoloyyh/go-symbol/internal/symbol"
)

func newTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types <path>",
		Short: "List declared types, and struct field layouts, from the typelink table",
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

			types, ok := r.TypeLinks(cfg.Base)
			if !ok {
				return fmt.Errorf("gosymbol: type table unavailable for %s", args[0])
			}

			for _, t := range types.All() {
				if cfg.StructOnly && t.Kind() != symbol.KindStruct {
					continue
				}
				name, _ := t.Name()
				fmt.Printf("%s  kind=%d  addr=%#x\n", name, t.Kind(), t.Address())
				if t.Kind() != symbol.KindStruct {
					continue
				}
				printFields(t)
			}
			return nil
		},
	}
}

func printFields(t symbol.Struct) {
	n, err := t.FieldCount()
	if err != nil || n == 0 {
		return
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Field", "Offset"})
	for i := 0; i < n; i++ {
		f, ok, err := t.Field(i)
		if err != nil || !ok {
			continue
		}
		table.Append([]string{f.Name, fmt.Sprintf("%#x", f.Offset)})
	}
	table.Render()
}
