// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/pflag"

	"github.com/trellis-ml/trellis/cmd/trellis/cli"
	"github.com/trellis-ml/trellis/lib/version"
)

func versionCommand() *cli.Command {
	var asJSON bool
	return &cli.Command{
		Name:    "version",
		Summary: "Print version and build information",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("version", pflag.ContinueOnError)
			flags.BoolVar(&asJSON, "json", false, "output as JSON")
			return flags
		},
		Run: func(args []string) error {
			if asJSON {
				return cli.WriteJSON(map[string]string{
					"version":    version.Version,
					"commit":     version.GitCommit,
					"dirty":      version.GitDirty,
					"build_time": version.BuildTime,
					"go":         runtime.Version(),
					"platform":   runtime.GOOS + "/" + runtime.GOARCH,
				})
			}
			fmt.Println("trellis " + version.Full())
			return nil
		},
	}
}
