package sqlite

import (
	"context"
	"fmt"
	"time"

	"echelon/internal/domain"
)

// ImportSeed loads a seed fragment in one transaction. Teams are upserted
// by id. CCIRs and raw data with an id are upserted; those without one are
// inserted unless an identical row already exists, so importing the same
// seed twice changes nothing.
func (s *Store) ImportSeed(ctx context.Context, seed *domain.SeedFragment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	teamStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO teams (team_id, team_name, echelon_level, parent_team_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(team_id) DO UPDATE SET
			team_name = excluded.team_name,
			echelon_level = excluded.echelon_level,
			parent_team_id = excluded.parent_team_id
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare team statement: %w", err)
	}
	defer teamStmt.Close()

	seeded := make(map[int64]struct{}, len(seed.Teams))
	for _, team := range seed.Teams {
		if team.ID <= 0 {
			return domain.InvalidInput(fmt.Sprintf("seed team %q has no team_id", team.Name))
		}
		seeded[team.ID] = struct{}{}
	}
	external := make([]int64, 0)
	for _, team := range seed.Teams {
		if parent, ok := team.Parent(); ok {
			if _, inSeed := seeded[parent]; !inSeed {
				external = append(external, parent)
			}
		}
	}
	if err := requireIDs(ctx, tx, "teams", "team_id", "parent team", external); err != nil {
		return err
	}

	for _, team := range seed.Teams {
		if _, err := teamStmt.ExecContext(ctx, team.ID, team.Name,
			stringToNull(team.EchelonLevel), int64PtrToNull(team.ParentID)); err != nil {
			return fmt.Errorf("failed to upsert team %d: %w", team.ID, err)
		}
	}

	for _, ccir := range seed.CCIRs {
		keywords, err := marshalToNull(ccir.Keywords)
		if err != nil {
			return fmt.Errorf("marshal keywords: %w", err)
		}
		if ccir.ID > 0 {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO ccirs (ccir_id, team_id, description, keywords, active)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(ccir_id) DO UPDATE SET
					team_id = excluded.team_id,
					description = excluded.description,
					keywords = excluded.keywords,
					active = excluded.active
			`, ccir.ID, ccir.TeamID, ccir.Description, keywords, ccir.Active)
		} else {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO ccirs (team_id, description, keywords, active)
				SELECT ?, ?, ?, ?
				WHERE NOT EXISTS (SELECT 1 FROM ccirs WHERE team_id = ? AND description = ?)
			`, ccir.TeamID, ccir.Description, keywords, ccir.Active, ccir.TeamID, ccir.Description)
		}
		if err != nil {
			return fmt.Errorf("failed to import ccir %q: %w", ccir.Description, err)
		}
	}

	now := time.Now().UTC()
	for _, raw := range seed.RawData {
		source := raw.SourceType
		if source == "" {
			source = domain.DefaultSourceType
		}
		if raw.ID > 0 {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO raw_data (raw_data_id, team_id, content, source_type, created_at)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(raw_data_id) DO UPDATE SET
					team_id = excluded.team_id,
					content = excluded.content,
					source_type = excluded.source_type
			`, raw.ID, raw.TeamID, raw.Content, source, now)
		} else {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO raw_data (team_id, content, source_type, created_at)
				SELECT ?, ?, ?, ?
				WHERE NOT EXISTS (SELECT 1 FROM raw_data WHERE team_id = ? AND content = ?)
			`, raw.TeamID, raw.Content, source, now, raw.TeamID, raw.Content)
		}
		if err != nil {
			return fmt.Errorf("failed to import raw data for team %d: %w", raw.TeamID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
