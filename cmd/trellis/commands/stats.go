// Copyright 2026 The Trellis Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/trellis-ml/trellis/cmd/trellis/cli"
	"github.com/trellis-ml/trellis/lib/clock"
	"github.com/trellis-ml/trellis/lib/manifest"
)

func statsCommand() *cli.Command {
	var (
		configPath   string
		manifestPath string
		runID        int64
		asJSON       bool
	)
	return &cli.Command{
		Name:    "stats",
		Summary: "Query the run manifest",
		Description: `List catalogued runs, or show one run's shards and drop counts. The
manifest path comes from the config file unless --manifest overrides
it.`,
		Examples: []cli.Example{
			{
				Description: "List all runs",
				Command:     "trellis stats --config trellis.yaml",
			},
			{
				Description: "Show one run's shards and drops",
				Command:     "trellis stats --config trellis.yaml --run 3",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("stats", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "config file (default $TRELLIS_CONFIG)")
			flags.StringVar(&manifestPath, "manifest", "", "manifest database (overrides config)")
			flags.Int64Var(&runID, "run", 0, "show this run's shards and drops")
			flags.BoolVar(&asJSON, "json", false, "output as JSON")
			return flags
		},
		Run: func(args []string) error {
			path := manifestPath
			if path == "" {
				cfg, err := loadConfig(configPath)
				if err != nil {
					return err
				}
				path = cfg.ManifestPath
			}
			if path == "" {
				return fmt.Errorf("no manifest configured (set manifest_path or --manifest)")
			}
			return runStats(context.Background(), path, runID, asJSON)
		},
	}
}

func runStats(ctx context.Context, path string, runID int64, asJSON bool) error {
	store, err := manifest.Open(path, cli.NewCommandLogger().With("command", "stats"), clock.Real())
	if err != nil {
		return err
	}
	defer store.Close()

	if runID > 0 {
		return showRun(ctx, store, runID, asJSON)
	}

	runs, err := store.Runs(ctx)
	if err != nil {
		return err
	}
	if asJSON {
		return cli.WriteJSON(runs)
	}

	tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tTEMPLATE\tREASONING\tPACKED\tDIALOGUES\tEXAMPLES\tFINGERPRINT")
	for _, run := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%t\t%d\t%d\t%.12s\n",
			run.ID, time.Unix(run.StartedUnix, 0).UTC().Format(time.RFC3339),
			run.Template, run.Reasoning, run.Packed,
			run.Dialogues, run.Examples, run.Fingerprint)
	}
	return tw.Flush()
}

func showRun(ctx context.Context, store *manifest.Store, runID int64, asJSON bool) error {
	shards, err := store.Shards(ctx, runID)
	if err != nil {
		return err
	}
	drops, err := store.Drops(ctx, runID)
	if err != nil {
		return err
	}

	if asJSON {
		return cli.WriteJSON(struct {
			Shards []manifest.Shard `json:"shards"`
			Drops  []manifest.Drop  `json:"drops"`
		}{shards, drops})
	}

	tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "SHARD\tRECORDS\tBYTES\tDIGEST")
	for _, entry := range shards {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.12s\n", entry.Path, entry.Records, entry.Bytes, entry.Digest)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(drops) > 0 {
		fmt.Println()
		tw = tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
		fmt.Fprintln(tw, "DROP REASON\tCOUNT")
		for _, drop := range drops {
			fmt.Fprintf(tw, "%s\t%d\n", drop.Reason, drop.Count)
		}
		return tw.Flush()
	}
	return nil
}
