package main

import (
	"fmt"
	"io"

	"echelon/internal/codec"
	"echelon/internal/domain"

	"github.com/spf13/cobra"
)

func teamsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "teams",
		Short: "List teams",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			teams, err := a.coord.Teams(cmd.Context())
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), teams, func(w io.Writer) error {
				return codec.WriteTeams(w, teams)
			})
		},
	}
	cmd.AddCommand(teamTreeCmd(a), teamCreateCmd(a))
	return cmd
}

func teamTreeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tree [team_id]",
		Short: "Show a team and its subordinates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("team_id", args[0])
			if err != nil {
				return err
			}
			node, err := a.svc.TeamSubtree(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), node, func(w io.Writer) error {
				return codec.WriteTeamTree(w, node)
			})
		},
	}
}

func teamCreateCmd(a *app) *cobra.Command {
	var (
		id      int64
		name    string
		echelon string
		parent  int64
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add a team to the command tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			team, err := a.svc.CreateTeam(cmd.Context(), domain.NewTeam(id, name, echelon, parent))
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), team, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Created team %d (%s)\n", team.ID, team.Name)
				return err
			})
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "team id (assigned by the store if 0)")
	cmd.Flags().StringVar(&name, "name", "", "team name")
	cmd.Flags().StringVar(&echelon, "echelon", "", "echelon level, e.g. Company")
	cmd.Flags().Int64Var(&parent, "parent", 0, "parent team id (root if 0)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
