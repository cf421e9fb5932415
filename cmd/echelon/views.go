package main

import (
	"io"

	"echelon/internal/codec"
	"echelon/internal/domain"
	"echelon/internal/hierarchy"

	"github.com/spf13/cobra"
)

func hierarchyCmd(a *app) *cobra.Command {
	var (
		teamID   int64
		subteams bool
		flat     bool
	)
	cmd := &cobra.Command{
		Use:   "hierarchy",
		Short: "Show the bullet-point hierarchy",
		Long: `Show the bullet-point forest. With --team the data service scopes the
forest to that team, and to its subordinates with --subteams. With --flat
every occurrence is listed once in pre-order without nesting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				bullets []domain.BulletPoint
				err     error
			)
			if teamID != 0 {
				bullets, err = a.coord.TeamHierarchy(cmd.Context(), teamID, subteams)
			} else {
				bullets, err = a.coord.Hierarchy(cmd.Context())
			}
			if err != nil {
				return err
			}
			if flat {
				bullets = hierarchy.Flatten(bullets)
			}
			return a.render(cmd.OutOrStdout(), bullets, func(w io.Writer) error {
				return codec.WriteForest(w, bullets)
			})
		},
	}
	cmd.Flags().Int64Var(&teamID, "team", 0, "scope to a team")
	cmd.Flags().BoolVar(&subteams, "subteams", true, "include subordinate teams when scoped")
	cmd.Flags().BoolVar(&flat, "flat", false, "list bullet points without nesting")
	return cmd
}

func teamViewCmd(a *app) *cobra.Command {
	var subordinates bool
	cmd := &cobra.Command{
		Use:   "team-view [team_id]",
		Short: "Show a team's summary, or its subordinates' summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("team_id", args[0])
			if err != nil {
				return err
			}
			view, err := a.coord.OpenTeamView(cmd.Context(), id, subordinates)
			if err != nil {
				return err
			}
			defer a.coord.CloseTeamView(id, subordinates)

			return a.render(cmd.OutOrStdout(), view, func(w io.Writer) error {
				return codec.WriteForest(w, view.Bullets)
			})
		},
	}
	cmd.Flags().BoolVar(&subordinates, "subordinates", false, "include every team below this one")
	return cmd
}

func provenanceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "provenance [bp_id]",
		Short: "Trace a bullet point to the raw data it cites",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("bp_id", args[0])
			if err != nil {
				return err
			}
			view := a.coord.OpenProvenance(id)
			defer a.coord.CloseProvenance(id)

			tree, err := view.Get(cmd.Context())
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), tree, func(w io.Writer) error {
				return codec.WriteProvenance(w, tree)
			})
		},
	}
}
