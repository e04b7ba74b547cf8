// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command gosymbol inspects a compiled Go ELF binary's toolchain version,
// build information, function symbol table, and type/interface tables,
// without using DWARF.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/yoloyyh/go-symbol/internal/symbol"
	"github.com/yoloyyh/go-symbol/pkg/config"
)

var (
	v      = viper.New()
	logger *zap.SugaredLogger
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gosymbol",
		Short: "Inspect Go toolchain metadata embedded in an ELF binary",
	}
	root.PersistentFlags().Uint64("base", 0, "runtime relocation applied to caller-visible addresses (ET_DYN)")
	root.PersistentFlags().String("access", "mapped", "function table access mode: mapped|memory|attached")
	root.PersistentFlags().Bool("struct-only", false, "restrict `types` output to struct kinds")
	root.PersistentFlags().String("format", "table", "output format: table|json (accepted but not used; output is always tables)")
	root.PersistentFlags().Bool("verbose", false, "enable debug logging")
	v.BindPFlag("base", root.PersistentFlags().Lookup("base"))
	v.BindPFlag("access", root.PersistentFlags().Lookup("access"))
	v.BindPFlag("struct_only", root.PersistentFlags().Lookup("struct-only"))
	v.BindPFlag("format", root.PersistentFlags().Lookup("format"))

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		z, err := newZapLogger(verbose)
		if err != nil {
			return err
		}
		logger = z.Sugar()
		return nil
	}

	root.AddCommand(
		newVersionCmd(),
		newBuildInfoCmd(),
		newInterfacesCmd(),
		newTypesCmd(),
		newSymbolsCmd(),
	)
	return root
}

func newZapLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func loadConfig() (config.Config, error) {
	return config.Load(v)
}

func openReader(path string) (*symbol.Reader, error) {
	return symbol.Open(path, logger)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
