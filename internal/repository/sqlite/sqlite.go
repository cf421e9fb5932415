package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"echelon/internal/domain"

	_ "modernc.org/sqlite"
)

// Store implements repository.Store using SQLite
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at dbPath and migrates it.
// ":memory:" gives a private in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if dbPath != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS teams (
		team_id INTEGER PRIMARY KEY AUTOINCREMENT,
		team_name TEXT NOT NULL,
		echelon_level TEXT,
		parent_team_id INTEGER REFERENCES teams(team_id) DEFERRABLE INITIALLY DEFERRED
	);

	CREATE TABLE IF NOT EXISTS raw_data (
		raw_data_id INTEGER PRIMARY KEY AUTOINCREMENT,
		team_id INTEGER NOT NULL REFERENCES teams(team_id),
		content TEXT NOT NULL,
		source_type TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS ccirs (
		ccir_id INTEGER PRIMARY KEY AUTOINCREMENT,
		team_id INTEGER NOT NULL REFERENCES teams(team_id),
		description TEXT NOT NULL,
		keywords TEXT,
		active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS bullet_points (
		bp_id INTEGER PRIMARY KEY AUTOINCREMENT,
		team_id INTEGER NOT NULL REFERENCES teams(team_id),
		content TEXT NOT NULL,
		validity_status TEXT NOT NULL DEFAULT 'valid',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS bullet_point_sources (
		parent_bp_id INTEGER NOT NULL REFERENCES bullet_points(bp_id) ON DELETE CASCADE,
		child_bp_id INTEGER NOT NULL REFERENCES bullet_points(bp_id) ON DELETE CASCADE,
		PRIMARY KEY (parent_bp_id, child_bp_id)
	);

	CREATE TABLE IF NOT EXISTS bullet_point_raw_refs (
		bp_id INTEGER NOT NULL REFERENCES bullet_points(bp_id) ON DELETE CASCADE,
		raw_data_id INTEGER NOT NULL REFERENCES raw_data(raw_data_id) ON DELETE CASCADE,
		PRIMARY KEY (bp_id, raw_data_id)
	);

	CREATE INDEX IF NOT EXISTS idx_teams_parent ON teams(parent_team_id);
	CREATE INDEX IF NOT EXISTS idx_raw_data_team ON raw_data(team_id);
	CREATE INDEX IF NOT EXISTS idx_ccirs_team ON ccirs(team_id);
	CREATE INDEX IF NOT EXISTS idx_bullet_points_team ON bullet_points(team_id);
	CREATE INDEX IF NOT EXISTS idx_sources_child ON bullet_point_sources(child_bp_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// echelon_level was added to bullet_points after the first schema
	return s.addColumnIfNotExists("bullet_points", "echelon_level", "TEXT")
}

// addColumnIfNotExists adds a column to an existing table
func (s *Store) addColumnIfNotExists(table, column, decl string) error {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return fmt.Errorf("failed to inspect %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return fmt.Errorf("failed to scan column info: %w", err)
		}
		if strings.EqualFold(name, column) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	if _, err := s.db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, decl)); err != nil {
		return fmt.Errorf("failed to add %s.%s: %w", table, column, err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// ============================================================================
// Teams
// ============================================================================

// CreateTeam inserts a team. A zero ID lets the database assign one.
func (s *Store) CreateTeam(ctx context.Context, team domain.Team) (domain.Team, error) {
	if parent, ok := team.Parent(); ok {
		if _, err := s.GetTeam(ctx, parent); err != nil {
			return domain.Team{}, err
		}
	}

	var id sql.NullInt64
	if team.ID > 0 {
		id = sql.NullInt64{Int64: team.ID, Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO teams (team_id, team_name, echelon_level, parent_team_id)
		VALUES (?, ?, ?, ?)
	`, id, team.Name, stringToNull(team.EchelonLevel), int64PtrToNull(team.ParentID))
	if err != nil {
		return domain.Team{}, fmt.Errorf("failed to insert team: %w", err)
	}

	newID, err := res.LastInsertId()
	if err != nil {
		return domain.Team{}, fmt.Errorf("failed to read team id: %w", err)
	}
	return s.GetTeam(ctx, newID)
}

// GetTeam retrieves a single team by ID
func (s *Store) GetTeam(ctx context.Context, id int64) (domain.Team, error) {
	var row teamRow
	err := s.db.QueryRowContext(ctx, `SELECT `+teamColumns+` FROM teams WHERE team_id = ?`, id).
		Scan(row.scanArgs()...)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Team{}, domain.NotFound("team %d", id)
	}
	if err != nil {
		return domain.Team{}, fmt.Errorf("failed to query team: %w", err)
	}
	return row.toDomain(), nil
}

// ListTeams returns every team ordered by id
func (s *Store) ListTeams(ctx context.Context) ([]domain.Team, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+teamColumns+` FROM teams ORDER BY team_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query teams: %w", err)
	}
	defer rows.Close()

	teams := make([]domain.Team, 0)
	for rows.Next() {
		var row teamRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, row.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating teams: %w", err)
	}
	return teams, nil
}

// ============================================================================
// Raw Data
// ============================================================================

// CreateRawData files an observation for an existing team
func (s *Store) CreateRawData(ctx context.Context, in domain.NewRawData) (domain.RawData, error) {
	if _, err := s.GetTeam(ctx, in.TeamID); err != nil {
		return domain.RawData{}, err
	}

	source := in.SourceType
	if source == "" {
		source = domain.DefaultSourceType
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO raw_data (team_id, content, source_type, created_at)
		VALUES (?, ?, ?, ?)
	`, in.TeamID, in.Content, source, time.Now().UTC())
	if err != nil {
		return domain.RawData{}, fmt.Errorf("failed to insert raw data: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return domain.RawData{}, fmt.Errorf("failed to read raw data id: %w", err)
	}
	return s.getRawData(ctx, id)
}

func (s *Store) getRawData(ctx context.Context, id int64) (domain.RawData, error) {
	var row rawRow
	err := s.db.QueryRowContext(ctx, `SELECT `+rawColumns+` FROM raw_data WHERE raw_data_id = ?`, id).
		Scan(row.scanArgs()...)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RawData{}, domain.NotFound("raw data %d", id)
	}
	if err != nil {
		return domain.RawData{}, fmt.Errorf("failed to query raw data: %w", err)
	}
	return row.toDomain(), nil
}

// ListRawData returns every observation ordered by id
func (s *Store) ListRawData(ctx context.Context) ([]domain.RawData, error) {
	return s.queryRawData(ctx, `SELECT `+rawColumns+` FROM raw_data ORDER BY raw_data_id`)
}

// ListTeamRawData returns the observations filed by one team
func (s *Store) ListTeamRawData(ctx context.Context, teamID int64) ([]domain.RawData, error) {
	if _, err := s.GetTeam(ctx, teamID); err != nil {
		return nil, err
	}
	return s.queryRawData(ctx,
		`SELECT `+rawColumns+` FROM raw_data WHERE team_id = ? ORDER BY raw_data_id`, teamID)
}

func (s *Store) queryRawData(ctx context.Context, query string, args ...interface{}) ([]domain.RawData, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query raw data: %w", err)
	}
	defer rows.Close()

	out := make([]domain.RawData, 0)
	for rows.Next() {
		var row rawRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan raw data: %w", err)
		}
		out = append(out, row.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating raw data: %w", err)
	}
	return out, nil
}

// ============================================================================
// CCIRs
// ============================================================================

// CreateCCIR stores a CCIR for an existing team
func (s *Store) CreateCCIR(ctx context.Context, ccir domain.CCIR) (domain.CCIR, error) {
	if _, err := s.GetTeam(ctx, ccir.TeamID); err != nil {
		return domain.CCIR{}, err
	}

	keywords, err := marshalToNull(ccir.Keywords)
	if err != nil {
		return domain.CCIR{}, fmt.Errorf("marshal keywords: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO ccirs (team_id, description, keywords, active)
		VALUES (?, ?, ?, ?)
	`, ccir.TeamID, ccir.Description, keywords, ccir.Active)
	if err != nil {
		return domain.CCIR{}, fmt.Errorf("failed to insert ccir: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return domain.CCIR{}, fmt.Errorf("failed to read ccir id: %w", err)
	}
	ccir.ID = id
	if ccir.Keywords == nil {
		ccir.Keywords = make([]string, 0)
	}
	return ccir, nil
}

// ListTeamCCIRs returns the CCIRs of one team
func (s *Store) ListTeamCCIRs(ctx context.Context, teamID int64) ([]domain.CCIR, error) {
	if _, err := s.GetTeam(ctx, teamID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ccirColumns+` FROM ccirs WHERE team_id = ? ORDER BY ccir_id`, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ccirs: %w", err)
	}
	defer rows.Close()

	out := make([]domain.CCIR, 0)
	for rows.Next() {
		var row ccirRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan ccir: %w", err)
		}
		c, err := row.toDomain()
		if err != nil {
			return nil, fmt.Errorf("unmarshal keywords: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ccirs: %w", err)
	}
	return out, nil
}
