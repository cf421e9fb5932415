package sqlite

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"echelon/internal/domain"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// nullToInt64Ptr converts sql.NullInt64 to *int64, treating 0 as absent
func nullToInt64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid || ni.Int64 == 0 {
		return nil
	}
	v := ni.Int64
	return &v
}

// int64PtrToNull converts *int64 to sql.NullInt64, treating 0 as absent
func int64PtrToNull(p *int64) sql.NullInt64 {
	if p == nil || *p == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// ============================================================================
// JSON Marshaling Helpers
// ============================================================================

// unmarshalJSONField safely unmarshals JSON from nullable string into target
func unmarshalJSONField(ns sql.NullString, target interface{}) error {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(ns.String), target)
}

// marshalToNull marshals v to a nullable JSON string. Empty slices are
// stored as NULL.
func marshalToNull(v []string) (sql.NullString, error) {
	if len(v) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// placeholders returns "?, ?, ?" for n arguments
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// int64Args converts ids to query arguments
func int64Args(ids []int64) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// ============================================================================
// Schema Evolution Guide
// ============================================================================
//
// To add a column to bullet_points:
// 1. Add field to bulletRow struct (below)
// 2. Update scanArgs() - APPEND to end to match column order
// 3. Update bulletColumns constant - APPEND to end
// 4. Update toDomain() / toDetails() to map the new field
// 5. Add migration in sqlite.go migrate() using addColumnIfNotExists()
// 6. Update relevant tests
//
// CRITICAL: Column order must match between:
// - bulletColumns constant
// - scanArgs() return slice
// - All SELECT queries using bulletColumns
//
// Same pattern applies to teams, raw data and CCIRs.

// ============================================================================
// Team Row Scanner
// ============================================================================

// teamRow holds all columns from a team query for scanning
type teamRow struct {
	ID           int64
	Name         string
	EchelonLevel sql.NullString
	ParentID     sql.NullInt64
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match teamColumns order exactly:
// team_id, team_name, echelon_level, parent_team_id
func (r *teamRow) scanArgs() []interface{} {
	return []interface{}{
		&r.ID,           // 1
		&r.Name,         // 2
		&r.EchelonLevel, // 3
		&r.ParentID,     // 4
	}
}

// toDomain converts the scanned row to a domain.Team
func (r *teamRow) toDomain() domain.Team {
	return domain.Team{
		ID:           r.ID,
		Name:         r.Name,
		EchelonLevel: nullToString(r.EchelonLevel),
		ParentID:     nullToInt64Ptr(r.ParentID),
	}
}

// teamColumns returns the SELECT column list for team queries
const teamColumns = `team_id, team_name, echelon_level, parent_team_id`

// ============================================================================
// Raw Data Row Scanner
// ============================================================================

// rawRow holds all columns from a raw data query for scanning
type rawRow struct {
	ID         int64
	TeamID     int64
	Content    string
	SourceType sql.NullString
	CreatedAt  time.Time
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match rawColumns order exactly:
// raw_data_id, team_id, content, source_type, created_at
func (r *rawRow) scanArgs() []interface{} {
	return []interface{}{
		&r.ID,         // 1
		&r.TeamID,     // 2
		&r.Content,    // 3
		&r.SourceType, // 4
		&r.CreatedAt,  // 5
	}
}

// toDomain converts the scanned row to a domain.RawData
func (r *rawRow) toDomain() domain.RawData {
	source := nullToString(r.SourceType)
	if source == "" {
		source = domain.DefaultSourceType
	}
	return domain.RawData{
		ID:         r.ID,
		TeamID:     r.TeamID,
		Content:    r.Content,
		SourceType: source,
		CreatedAt:  r.CreatedAt,
	}
}

// rawColumns returns the SELECT column list for raw data queries
const rawColumns = `raw_data_id, team_id, content, source_type, created_at`

// ============================================================================
// CCIR Row Scanner
// ============================================================================

// ccirRow holds all columns from a CCIR query for scanning
type ccirRow struct {
	ID           int64
	TeamID       int64
	Description  string
	KeywordsJSON sql.NullString
	Active       bool
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match ccirColumns order exactly:
// ccir_id, team_id, description, keywords, active
func (r *ccirRow) scanArgs() []interface{} {
	return []interface{}{
		&r.ID,           // 1
		&r.TeamID,       // 2
		&r.Description,  // 3
		&r.KeywordsJSON, // 4
		&r.Active,       // 5
	}
}

// toDomain converts the scanned row to a domain.CCIR
func (r *ccirRow) toDomain() (domain.CCIR, error) {
	c := domain.CCIR{
		ID:          r.ID,
		TeamID:      r.TeamID,
		Description: r.Description,
		Keywords:    make([]string, 0),
		Active:      r.Active,
	}
	if err := unmarshalJSONField(r.KeywordsJSON, &c.Keywords); err != nil {
		return domain.CCIR{}, err
	}
	return c, nil
}

// ccirColumns returns the SELECT column list for CCIR queries
const ccirColumns = `ccir_id, team_id, description, keywords, active`

// ============================================================================
// Bullet Point Row Scanner
// ============================================================================

// bulletRow holds all columns from a bullet point query for scanning
type bulletRow struct {
	ID             int64
	TeamID         int64
	EchelonLevel   sql.NullString
	Content        string
	ValidityStatus sql.NullString
	CreatedAt      time.Time
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match bulletColumns order exactly:
// bp_id, team_id, echelon_level, content, validity_status, created_at
func (r *bulletRow) scanArgs() []interface{} {
	return []interface{}{
		&r.ID,             // 1
		&r.TeamID,         // 2
		&r.EchelonLevel,   // 3
		&r.Content,        // 4
		&r.ValidityStatus, // 5
		&r.CreatedAt,      // 6
	}
}

// toDomain converts the scanned row to a domain.BulletPoint without children
func (r *bulletRow) toDomain() domain.BulletPoint {
	status := domain.ValidityStatus(nullToString(r.ValidityStatus))
	if status == "" {
		status = domain.ValidityValid
	}
	return domain.BulletPoint{
		ID:             r.ID,
		TeamID:         r.TeamID,
		EchelonLevel:   nullToString(r.EchelonLevel),
		Content:        r.Content,
		ValidityStatus: status,
	}
}

// toDetails converts the scanned row to domain.BulletPointDetails. The child
// id lists are filled by the caller.
func (r *bulletRow) toDetails() domain.BulletPointDetails {
	bp := r.toDomain()
	return domain.BulletPointDetails{
		ID:                bp.ID,
		TeamID:            bp.TeamID,
		EchelonLevel:      bp.EchelonLevel,
		Content:           bp.Content,
		ValidityStatus:    bp.ValidityStatus,
		CreatedAt:         r.CreatedAt,
		ChildBulletPoints: make([]int64, 0),
		ChildRawData:      make([]int64, 0),
	}
}

// bulletColumns returns the SELECT column list for bullet point queries
const bulletColumns = `bp_id, team_id, echelon_level, content, validity_status, created_at`
