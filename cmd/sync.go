package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dev-mohitbeniwal/bouncer/config"
	"github.com/dev-mohitbeniwal/bouncer/model"
	"github.com/dev-mohitbeniwal/bouncer/pdp/cache"
	"github.com/dev-mohitbeniwal/bouncer/pdp/distribution"
)

const (
	outputFormatText = "text"
	outputFormatCSV  = "csv"
)

var availableOutputFormats = []string{outputFormatText, outputFormatCSV}

func buildSyncCommand() *cobra.Command {
	var dryRun bool
	var outputFormat string

	syncCommand := &cobra.Command{
		Use:                   "sync",
		Short:                 "Pull the policy bundle once and print its contents",
		DisableFlagsInUseLine: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range availableOutputFormats {
				if f == outputFormat {
					return nil
				}
			}
			return fmt.Errorf("unsupported output format %s", outputFormat)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.InitConfig()
			if err != nil {
				return fmt.Errorf("failed to initialize config: %w", err)
			}
			return doSync(cmd.Context(), cfg.Distribution, dryRun, outputFormat, os.Stdout)
		},
	}

	syncCommand.Flags().BoolVar(&dryRun, "dry-run", false, "Fetch the bundle without loading it into a policy cache")
	syncCommand.Flags().StringVarP(&outputFormat, "output-format", "f", outputFormatText, "Output format. Supported formats: "+strings.Join(availableOutputFormats, ", "))
	return syncCommand
}

func doSync(ctx context.Context, cfg config.DistributionConfiguration, dryRun bool, outputFormat string, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	policies := cache.NewPolicyCache()
	syncer := distribution.NewSyncer(distribution.Config{
		URL:         cfg.URL,
		Token:       cfg.Token,
		ClientID:    cfg.ClientID,
		BouncerID:   cfg.BouncerID,
		Environment: cfg.Environment,
		Timeout:     cfg.Timeout,
	}, policies)

	var bundle *model.PolicyBundle
	if dryRun {
		b, err := syncer.Fetch(ctx)
		if err != nil {
			return err
		}
		bundle = b
	} else {
		if err := syncer.Sync(ctx); err != nil {
			return err
		}
		info := policies.Bundle()
		bundle = &model.PolicyBundle{ID: info.ID, Version: info.Version, Policies: policies.ListPolicies()}
	}

	fmt.Fprintln(out, renderBundle(bundle, outputFormat, terminalWidth(out)))
	return nil
}

// terminalWidth is the width of out when it is a terminal, else 0.
func terminalWidth(out io.Writer) int {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

func renderBundle(bundle *model.PolicyBundle, outputFormat string, width int) string {
	t := table.NewWriter()
	if width > 0 {
		t.SetAllowedRowLength(width)
	}
	t.SetTitle(fmt.Sprintf("bundle %s (version %s)", bundle.ID, bundle.Version))
	t.AppendHeader(table.Row{"ID", "Name", "Language", "Version", "Status"})
	for _, p := range bundle.Policies {
		t.AppendRow(table.Row{p.ID, p.Name, p.Language, p.Version, p.Status})
	}
	t.AppendFooter(table.Row{"", "", "", "Total", len(bundle.Policies)})

	if outputFormat == outputFormatCSV {
		return t.RenderCSV()
	}
	return t.Render()
}
