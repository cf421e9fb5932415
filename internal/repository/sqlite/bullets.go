package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"echelon/internal/domain"
)

// queryer is satisfied by *sql.DB and *sql.Tx
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// CreateBulletPoint inserts a bullet point and its provenance links in one
// transaction. Every referenced team, bullet point and raw datum must exist.
// An empty echelon level is taken from the team.
func (s *Store) CreateBulletPoint(ctx context.Context, in domain.NewBulletPoint) (domain.BulletPoint, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.BulletPoint{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var teamEchelon sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT echelon_level FROM teams WHERE team_id = ?`, in.TeamID).Scan(&teamEchelon)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.BulletPoint{}, domain.NotFound("team %d", in.TeamID)
	}
	if err != nil {
		return domain.BulletPoint{}, fmt.Errorf("failed to query team: %w", err)
	}

	if err := requireIDs(ctx, tx, "bullet_points", "bp_id", "bullet point", in.ChildBPs); err != nil {
		return domain.BulletPoint{}, err
	}
	if err := requireIDs(ctx, tx, "raw_data", "raw_data_id", "raw data", in.ChildRaws); err != nil {
		return domain.BulletPoint{}, err
	}

	echelon := in.EchelonLevel
	if echelon == "" {
		echelon = nullToString(teamEchelon)
	}

	id, err := insertBullet(ctx, tx, in.TeamID, echelon, in.Content)
	if err != nil {
		return domain.BulletPoint{}, err
	}
	for _, child := range in.ChildBPs {
		if err := insertSource(ctx, tx, id, child); err != nil {
			return domain.BulletPoint{}, err
		}
	}
	for _, raw := range in.ChildRaws {
		if err := insertRawRef(ctx, tx, id, raw); err != nil {
			return domain.BulletPoint{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.BulletPoint{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return domain.BulletPoint{
		ID:             id,
		TeamID:         in.TeamID,
		EchelonLevel:   echelon,
		Content:        in.Content,
		ValidityStatus: domain.ValidityValid,
	}, nil
}

// requireIDs fails with NotFound naming the first id absent from table
func requireIDs(ctx context.Context, q queryer, table, column, kind string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s IN (%s)`, column, table, column, placeholders(len(ids)))
	rows, err := q.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	found := make(map[int64]struct{}, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("failed to scan %s id: %w", table, err)
		}
		found[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return domain.NotFound("%s %d", kind, id)
		}
	}
	return nil
}

func insertBullet(ctx context.Context, tx *sql.Tx, teamID int64, echelon, content string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO bullet_points (team_id, echelon_level, content, validity_status, created_at)
		VALUES (?, ?, ?, 'valid', ?)
	`, teamID, stringToNull(echelon), content, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to insert bullet point: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read bullet point id: %w", err)
	}
	return id, nil
}

func insertSource(ctx context.Context, tx *sql.Tx, parentID, childID int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO bullet_point_sources (parent_bp_id, child_bp_id) VALUES (?, ?)
	`, parentID, childID)
	if err != nil {
		return fmt.Errorf("failed to link %d -> %d: %w", parentID, childID, err)
	}
	return nil
}

func insertRawRef(ctx context.Context, tx *sql.Tx, bpID, rawID int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO bullet_point_raw_refs (bp_id, raw_data_id) VALUES (?, ?)
	`, bpID, rawID)
	if err != nil {
		return fmt.Errorf("failed to reference raw data %d from %d: %w", rawID, bpID, err)
	}
	return nil
}

// GetBulletPointDetails returns a bullet point with its child bullet point
// and raw data ids, in link order
func (s *Store) GetBulletPointDetails(ctx context.Context, id int64) (domain.BulletPointDetails, error) {
	var row bulletRow
	err := s.db.QueryRowContext(ctx, `SELECT `+bulletColumns+` FROM bullet_points WHERE bp_id = ?`, id).
		Scan(row.scanArgs()...)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.BulletPointDetails{}, domain.NotFound("bullet point %d", id)
	}
	if err != nil {
		return domain.BulletPointDetails{}, fmt.Errorf("failed to query bullet point: %w", err)
	}

	details := row.toDetails()

	details.ChildBulletPoints, err = s.queryIDs(ctx,
		`SELECT child_bp_id FROM bullet_point_sources WHERE parent_bp_id = ? ORDER BY rowid`, id)
	if err != nil {
		return domain.BulletPointDetails{}, fmt.Errorf("failed to query child bullet points: %w", err)
	}

	details.ChildRawData, err = s.queryIDs(ctx,
		`SELECT raw_data_id FROM bullet_point_raw_refs WHERE bp_id = ? ORDER BY rowid`, id)
	if err != nil {
		return domain.BulletPointDetails{}, fmt.Errorf("failed to query child raw data: %w", err)
	}

	return details, nil
}

func (s *Store) queryIDs(ctx context.Context, query string, args ...interface{}) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListBulletPoints returns every bullet point, without children, ordered by
// id
func (s *Store) ListBulletPoints(ctx context.Context) ([]domain.BulletPoint, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+bulletColumns+` FROM bullet_points ORDER BY bp_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query bullet points: %w", err)
	}
	defer rows.Close()

	out := make([]domain.BulletPoint, 0)
	for rows.Next() {
		var row bulletRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan bullet point: %w", err)
		}
		out = append(out, row.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bullet points: %w", err)
	}
	return out, nil
}

// ListLinks returns every provenance edge in creation order
func (s *Store) ListLinks(ctx context.Context) ([]domain.Link, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT parent_bp_id, child_bp_id FROM bullet_point_sources ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Link, 0)
	for rows.Next() {
		var l domain.Link
		if err := rows.Scan(&l.ParentID, &l.ChildID); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating links: %w", err)
	}
	return out, nil
}

// LinkBulletPoints adds a provenance edge between two existing bullet
// points. Linking twice is a no-op.
func (s *Store) LinkBulletPoints(ctx context.Context, link domain.Link) error {
	if err := link.Validate(); err != nil {
		return err
	}
	if err := requireIDs(ctx, s.db, "bullet_points", "bp_id", "bullet point",
		[]int64{link.ParentID, link.ChildID}); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertSource(ctx, tx, link.ParentID, link.ChildID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListParents returns the bullet points that list bpID as a child
func (s *Store) ListParents(ctx context.Context, bpID int64) ([]int64, error) {
	ids, err := s.queryIDs(ctx,
		`SELECT parent_bp_id FROM bullet_point_sources WHERE child_bp_id = ? ORDER BY parent_bp_id`, bpID)
	if err != nil {
		return nil, fmt.Errorf("failed to query parents of %d: %w", bpID, err)
	}
	return ids, nil
}

// SetValidity sets the validity status of the given bullet points
func (s *Store) SetValidity(ctx context.Context, ids []int64, status domain.ValidityStatus) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := domain.ParseValidityStatus(string(status)); err != nil {
		return err
	}

	args := append([]interface{}{string(status)}, int64Args(ids)...)
	_, err := s.db.ExecContext(ctx,
		`UPDATE bullet_points SET validity_status = ? WHERE bp_id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return fmt.Errorf("failed to update validity: %w", err)
	}
	return nil
}

// ReplaceSummaries deletes every bullet point and link, then inserts plan in
// order within the same transaction. It returns the new ids, parallel to
// plan.
func (s *Store) ReplaceSummaries(ctx context.Context, plan domain.SummaryPlan) ([]int64, error) {
	for i, entry := range plan {
		for _, src := range entry.Sources {
			if src < 0 || src >= i {
				return nil, domain.InvalidInput(fmt.Sprintf("plan entry %d references entry %d", i, src))
			}
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Clear existing data (order matters due to foreign keys)
	for _, table := range []string{"bullet_point_raw_refs", "bullet_point_sources", "bullet_points"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return nil, fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	ids := make([]int64, len(plan))
	for i, entry := range plan {
		id, err := insertBullet(ctx, tx, entry.TeamID, entry.EchelonLevel, entry.Content)
		if err != nil {
			return nil, err
		}
		ids[i] = id

		for _, src := range entry.Sources {
			if err := insertSource(ctx, tx, id, ids[src]); err != nil {
				return nil, err
			}
		}
		for _, raw := range entry.RawData {
			if err := insertRawRef(ctx, tx, id, raw); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return ids, nil
}
