package main

import (
	"fmt"
	"io"

	"echelon/internal/codec"
	"echelon/internal/domain"

	"github.com/spf13/cobra"
)

func bulletCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bullet",
		Short: "Create and inspect bullet points",
	}
	cmd.AddCommand(bulletCreateCmd(a), bulletShowCmd(a))
	return cmd
}

func bulletCreateCmd(a *app) *cobra.Command {
	var in domain.NewBulletPoint
	cmd := &cobra.Command{
		Use:   "create",
		Short: "File a bullet point",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.coord.CreateBulletPoint(cmd.Context(), in)
			if err != nil {
				return err
			}
			out := map[string]interface{}{"bp_id": id, "message": "Bullet point created"}
			return a.render(cmd.OutOrStdout(), out, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Created bullet point %d\n", id)
				return err
			})
		},
	}
	cmd.Flags().Int64Var(&in.TeamID, "team", 0, "owning team id")
	cmd.Flags().StringVar(&in.Content, "content", "", "bullet point text")
	cmd.Flags().StringVar(&in.EchelonLevel, "echelon", "", "echelon level")
	cmd.Flags().Int64SliceVar(&in.ChildBPs, "child-bp", nil, "source bullet point id (repeatable)")
	cmd.Flags().Int64SliceVar(&in.ChildRaws, "child-raw", nil, "cited raw data id (repeatable)")
	_ = cmd.MarkFlagRequired("team")
	_ = cmd.MarkFlagRequired("content")
	return cmd
}

func bulletShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show [bp_id]",
		Short: "Show one bullet point with its child ids",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("bp_id", args[0])
			if err != nil {
				return err
			}
			details, err := a.svc.GetBulletPointDetails(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), details, func(w io.Writer) error {
				if err := codec.WriteForest(w, []domain.BulletPoint{details.BulletPoint()}); err != nil {
					return err
				}
				_, err := fmt.Fprintf(w, "  bullet points: %v\n  raw data: %v\n", details.ChildBulletPoints, details.ChildRawData)
				return err
			})
		},
	}
}

func rawCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "raw",
		Short: "File raw observations",
	}

	var in domain.NewRawData
	create := &cobra.Command{
		Use:   "create",
		Short: "File a raw observation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			created, err := a.coord.CreateRawData(cmd.Context(), in)
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), created, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Created raw data %d\n", created.ID)
				return err
			})
		},
	}
	create.Flags().Int64Var(&in.TeamID, "team", 0, "reporting team id")
	create.Flags().StringVar(&in.Content, "content", "", "observation text")
	create.Flags().StringVar(&in.SourceType, "source", "", "source type (default from config)")
	_ = create.MarkFlagRequired("team")
	_ = create.MarkFlagRequired("content")

	cmd.AddCommand(create)
	return cmd
}

func ccirCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ccir",
		Short: "Manage Commander's Critical Information Requirements",
	}

	var (
		ccir     domain.CCIR
		inactive bool
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Add a CCIR to a team",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ccir.Active = !inactive
			created, err := a.svc.CreateCCIR(cmd.Context(), ccir)
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), created, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Created CCIR %d for team %d\n", created.ID, created.TeamID)
				return err
			})
		},
	}
	create.Flags().Int64Var(&ccir.TeamID, "team", 0, "team id")
	create.Flags().StringVar(&ccir.Description, "description", "", "what the commander needs to know")
	create.Flags().StringSliceVar(&ccir.Keywords, "keyword", nil, "matching keyword (repeatable)")
	create.Flags().BoolVar(&inactive, "inactive", false, "create the CCIR inactive")
	_ = create.MarkFlagRequired("team")
	_ = create.MarkFlagRequired("description")

	cmd.AddCommand(create)
	return cmd
}

func regenerateCmd(a *app) *cobra.Command {
	var keyword string
	cmd := &cobra.Command{
		Use:   "regenerate",
		Short: "Regenerate summaries bottom-up, filtered by a CCIR keyword",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.coord.Regenerate(cmd.Context(), keyword)
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), res, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, res.Message)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&keyword, "ccir", "", "keyword raw data must mention (empty matches all)")
	return cmd
}

func invalidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate [bp_id]",
		Short: "Mark a bullet point invalid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("bp_id", args[0])
			if err != nil {
				return err
			}
			msg, err := a.coord.Invalidate(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printMessage(a, cmd, msg)
		},
	}
}

func linkCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "link [parent_bp_id] [child_bp_id]",
		Short: "Record that a bullet point is a source of another",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			parent, err := parseID("parent_bp_id", args[0])
			if err != nil {
				return err
			}
			child, err := parseID("child_bp_id", args[1])
			if err != nil {
				return err
			}
			msg, err := a.coord.Link(cmd.Context(), parent, child)
			if err != nil {
				return err
			}
			return printMessage(a, cmd, msg)
		},
	}
}

func printMessage(a *app, cmd *cobra.Command, msg string) error {
	return a.render(cmd.OutOrStdout(), map[string]string{"message": msg}, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, msg)
		return err
	})
}
