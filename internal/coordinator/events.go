package coordinator

import (
	"context"

	"echelon/internal/domain"

	"go.uber.org/zap"
)

// ApplyEvent reacts to a mutation made elsewhere, as reported by the data
// service's event stream. It updates caches as the matching local mutation
// would, without calling the mutation itself.
func (c *Coordinator) ApplyEvent(ctx context.Context, ev domain.Event) error {
	c.logger.Debug("applying event", zap.String("type", string(ev.Type)), zap.Int64("bp_id", ev.BulletPointID))

	switch ev.Type {
	case domain.EventSummariesRegenerated:
		return c.refresh(ctx, nil)
	case domain.EventBulletPointInvalidated:
		affected := append([]int64{ev.BulletPointID}, ev.Affected...)
		return c.refresh(ctx, affected)
	case domain.EventBulletPointsLinked:
		return c.refresh(ctx, []int64{ev.BulletPointID})
	case domain.EventBulletPointCreated, domain.EventTeamCreated:
		return c.refresh(ctx, []int64{})
	case domain.EventSeedReloaded:
		return c.refresh(ctx, nil)
	default:
		return nil
	}
}
