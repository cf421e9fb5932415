package main

import (
	"github.com/spf13/cobra"
)

// newRootCmd builds the command tree around a fresh app
func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "echelon",
		Short: "Hierarchical summary aggregation and provenance",
		Long: `echelon reads the bullet-point hierarchy produced by a chain of command,
regenerates CCIR-filtered summaries and traces every summary back to the
raw observations it cites.

Commands talk to the data service at --server, or to a local SQLite
database when --db is given.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.shutdown()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default: search path)")
	flags.StringVarP(&a.serverURL, "server", "s", "", "data service URL (overrides client.base_url)")
	flags.StringVar(&a.dbPath, "db", "", "use a local SQLite database instead of a server")
	flags.StringVarP(&a.output, "output", "o", "text", "output format: text, json, yaml")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose logging")

	rootCmd.AddCommand(
		teamsCmd(a),
		hierarchyCmd(a),
		teamViewCmd(a),
		provenanceCmd(a),
		bulletCmd(a),
		rawCmd(a),
		ccirCmd(a),
		regenerateCmd(a),
		invalidateCmd(a),
		linkCmd(a),
		seedCmd(a),
		watchCmd(a),
	)
	return rootCmd
}
