package cmd

import (
	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X github.com/dev-mohitbeniwal/bouncer/cmd.Version=..."
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:                   "bouncer",
	Short:                 "Policy decision and context enrichment gateway",
	DisableFlagsInUseLine: true,
	SilenceUsage:          true,
}

func init() {
	rootCmd.AddCommand(buildServeCommand())
	rootCmd.AddCommand(buildSyncCommand())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the bouncer version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(Version)
		},
	})
}

func Execute() error {
	return rootCmd.Execute()
}
