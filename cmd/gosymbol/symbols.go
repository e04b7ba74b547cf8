// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yoloyyh/go-symbol/internal/symbol"
)

func accessModeFromString(s string) symbol.AccessMode {
	switch s {
	case "memory":
		return symbol.AnonymousMemory
	case "attached":
		return symbol.Attached
	default:
		return symbol.FileMapping
	}
}

func newSymbolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "symbols <path>",
		Short: "List functions decoded from .gopclntab",
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

			table, ok := r.Symbols(accessModeFromString(cfg.Access), cfg.Base)
			if !ok {
				return fmt.Errorf("gosymbol: symbol table unavailable for %s", args[0])
			}
			fmt.Printf("%d functions\n", table.Len())
			return nil
		},
	}
}
