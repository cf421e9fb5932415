package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"echelon/internal/codec"
	"echelon/internal/domain"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const reconnectDelay = 2 * time.Second

func watchCmd(a *app) *cobra.Command {
	var (
		teamID       int64
		subordinates bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow data service events and keep views current",
		Long: `Subscribe to the data service's event stream. Each event refreshes the
cached hierarchy as the matching local mutation would. With --team the
team view is printed after every change.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.remote == nil {
				return domain.InvalidInput("watch needs a data service; drop --db")
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if teamID != 0 {
				if _, err := a.coord.OpenTeamView(ctx, teamID, subordinates); err != nil {
					return err
				}
				defer a.coord.CloseTeamView(teamID, subordinates)
			}

			for {
				err := a.follow(ctx, out, teamID, subordinates)
				if ctx.Err() != nil {
					return nil
				}
				a.logger.Warn("event stream lost, reconnecting", zap.Error(err),
					zap.Duration("delay", reconnectDelay), zap.String("breaker", a.remote.BreakerState()))
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(reconnectDelay):
				}
			}
		},
	}
	cmd.Flags().Int64Var(&teamID, "team", 0, "print this team's view after each change")
	cmd.Flags().BoolVar(&subordinates, "subordinates", false, "include subordinate teams in the view")
	return cmd
}

// follow applies events from one subscription until it ends
func (a *app) follow(ctx context.Context, out io.Writer, teamID int64, subordinates bool) error {
	events, err := a.remote.Subscribe(ctx)
	if err != nil {
		return err
	}
	// Anything missed while disconnected
	if err := a.coord.Refresh(ctx); err != nil {
		a.logger.Warn("refresh failed", zap.Error(err))
	}

	for ev := range events {
		if err := a.coord.ApplyEvent(ctx, ev); err != nil {
			a.logger.Warn("failed to apply event", zap.String("type", string(ev.Type)), zap.Error(err))
			continue
		}
		if err := a.render(out, ev, func(w io.Writer) error {
			_, err := fmt.Fprintln(w, describeEvent(ev))
			return err
		}); err != nil {
			return err
		}

		if teamID == 0 || !ev.ChangesBullets() {
			continue
		}
		view, err := a.coord.TeamView(ctx, teamID, subordinates)
		if err != nil {
			a.logger.Warn("team view unavailable", zap.Int64("team_id", teamID), zap.Error(err))
			continue
		}
		if err := a.render(out, view, func(w io.Writer) error {
			return codec.WriteForest(w, view.Bullets)
		}); err != nil {
			return err
		}
	}
	return errors.New("event stream closed")
}

func describeEvent(ev domain.Event) string {
	switch ev.Type {
	case domain.EventBulletPointCreated:
		return fmt.Sprintf("%s bullet point %d (team %d)", ev.Type, ev.BulletPointID, ev.TeamID)
	case domain.EventBulletPointsLinked:
		return fmt.Sprintf("%s %d -> %d", ev.Type, ev.BulletPointID, ev.ChildID)
	case domain.EventBulletPointInvalidated:
		return fmt.Sprintf("%s bullet point %d, %d derived", ev.Type, ev.BulletPointID, len(ev.Affected))
	case domain.EventSummariesRegenerated:
		return fmt.Sprintf("%s ccir=%q", ev.Type, ev.Keyword)
	case domain.EventRawDataCreated:
		return fmt.Sprintf("%s raw data %d (team %d)", ev.Type, ev.RawDataID, ev.TeamID)
	}
	return string(ev.Type)
}
