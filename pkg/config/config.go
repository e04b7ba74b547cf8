// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config is the typed, viper-backed configuration layer for
// cmd/gosymbol: flag values take precedence over GOSYMBOL_-prefixed
// environment variables, which take precedence over $HOME/.gosymbol.yaml,
// which takes precedence over the defaults below.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config is the resolved set of options every gosymbol subcommand reads.
type Config struct {
	// Base is the runtime relocation applied to caller-visible addresses
	// for ET_DYN binaries (spec §4.9's base parameter).
	Base uint64

	// Access selects how the function table is backed: "mapped",
	// "memory", or "attached" (spec §6 access_mode).
	Access string

	// StructOnly restricts `gosymbol types` output to struct kinds.
	StructOnly bool

	// Format holds the --format value ("table" or "json"). No subcommand
	// reads it: output is always rendered as plain text and tables.
	Format string
}

const envPrefix = "GOSYMBOL"

// Load builds a Config from, in increasing precedence: built-in defaults,
// $HOME/.gosymbol.yaml, GOSYMBOL_* environment variables, and finally the
// flag values already bound into v by the caller (cmd/gosymbol binds its
// pflag.FlagSet into v before calling Load).
func Load(v *viper.Viper) (Config, error) {
	v.SetDefault("base", uint64(0))
	v.SetDefault("access", "mapped")
	v.SetDefault("struct_only", false)
	v.SetDefault("format", "table")

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
		v.SetConfigName(".gosymbol")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return Config{}, fmt.Errorf("config: reading %s: %w", filepath.Join(home, ".gosymbol.yaml"), err)
			}
		}
	}

	return Config{
		Base:       v.GetUint64("base"),
		Access:     v.GetString("access"),
		StructOnly: v.GetBool("struct_only"),
		Format:     v.GetString("format"),
	}, nil
}
