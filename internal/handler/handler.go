package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"echelon/internal/codec"
	"echelon/internal/domain"
	"echelon/internal/loader"
	"echelon/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler handles data service API requests
type Handler struct {
	reports   *service.ReportService
	summaries *service.SummaryService
	logger    *zap.Logger
}

// New creates a new handler
func New(reports *service.ReportService, summaries *service.SummaryService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{reports: reports, summaries: summaries, logger: logger}
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// MessageResponse acknowledges a mutation
type MessageResponse struct {
	Message  string  `json:"message"`
	ID       int64   `json:"id,omitempty"`
	Affected []int64 `json:"affected,omitempty"`
}

// BulletPointCreated is returned after a bullet point is filed
type BulletPointCreated struct {
	ID      int64  `json:"bp_id"`
	Message string `json:"message"`
}

// CreateTeamRequest is the body of POST /api/teams
type CreateTeamRequest struct {
	ID           int64  `json:"team_id" validate:"gte=0"`
	Name         string `json:"team_name" validate:"required,max=128"`
	EchelonLevel string `json:"echelon_level" validate:"max=64"`
	ParentID     *int64 `json:"parent_team_id"`
}

// CreateCCIRRequest is the body of POST /api/ccirs
type CreateCCIRRequest struct {
	TeamID      int64    `json:"team_id" validate:"required,gt=0"`
	Description string   `json:"description" validate:"required"`
	Keywords    []string `json:"keywords" validate:"dive,max=64"`
	Active      *bool    `json:"active"`
}

// HealthCheck reports liveness
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]string{"status": "healthy"}, http.StatusOK)
}

// ============================================================================
// Teams
// ============================================================================

// ListTeams returns every team
func (h *Handler) ListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.reports.ListTeams(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list teams", err)
		return
	}
	h.writeJSON(w, teams, http.StatusOK)
}

// CreateTeam adds a team
func (h *Handler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	var req CreateTeamRequest
	if !h.decode(w, r, &req) {
		return
	}

	team, err := h.reports.CreateTeam(r.Context(), domain.Team{
		ID:           req.ID,
		Name:         req.Name,
		EchelonLevel: req.EchelonLevel,
		ParentID:     req.ParentID,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to create team", err)
		return
	}
	h.writeJSON(w, team, http.StatusCreated)
}

// GetTeamSubtree returns a team with its subordinates nested
func (h *Handler) GetTeamSubtree(w http.ResponseWriter, r *http.Request) {
	teamID, ok := h.pathID(w, r, "teamID")
	if !ok {
		return
	}

	node, err := h.reports.TeamSubtree(r.Context(), teamID)
	if err != nil {
		h.writeDomainError(w, "Failed to get team subtree", err)
		return
	}
	h.writeJSON(w, node, http.StatusOK)
}

// GetTeamHierarchy returns the nested bullet points of a team, with its
// subordinates unless include_subteams=false
func (h *Handler) GetTeamHierarchy(w http.ResponseWriter, r *http.Request) {
	teamID, ok := h.pathID(w, r, "teamID")
	if !ok {
		return
	}
	include, ok := h.queryBool(w, r, "include_subteams", true)
	if !ok {
		return
	}

	forest, err := h.reports.TeamHierarchy(r.Context(), teamID, include)
	if err != nil {
		h.writeDomainError(w, "Failed to get team hierarchy", err)
		return
	}
	h.writeJSON(w, forest, http.StatusOK)
}

// GetTeamBulletPoints returns the flat bullet points of a team, with its
// subordinates only if include_subteams=true
func (h *Handler) GetTeamBulletPoints(w http.ResponseWriter, r *http.Request) {
	teamID, ok := h.pathID(w, r, "teamID")
	if !ok {
		return
	}
	include, ok := h.queryBool(w, r, "include_subteams", false)
	if !ok {
		return
	}

	bullets, err := h.reports.TeamBulletPoints(r.Context(), teamID, include)
	if err != nil {
		h.writeDomainError(w, "Failed to get team bullet points", err)
		return
	}
	h.writeJSON(w, bullets, http.StatusOK)
}

// ListTeamRawData returns the observations of one team
func (h *Handler) ListTeamRawData(w http.ResponseWriter, r *http.Request) {
	teamID, ok := h.pathID(w, r, "teamID")
	if !ok {
		return
	}

	raw, err := h.reports.ListTeamRawData(r.Context(), teamID)
	if err != nil {
		h.writeDomainError(w, "Failed to list raw data", err)
		return
	}
	h.writeJSON(w, raw, http.StatusOK)
}

// ListTeamCCIRs returns the CCIRs of one team
func (h *Handler) ListTeamCCIRs(w http.ResponseWriter, r *http.Request) {
	teamID, ok := h.pathID(w, r, "teamID")
	if !ok {
		return
	}

	ccirs, err := h.reports.ListTeamCCIRs(r.Context(), teamID)
	if err != nil {
		h.writeDomainError(w, "Failed to list CCIRs", err)
		return
	}
	h.writeJSON(w, ccirs, http.StatusOK)
}

// ============================================================================
// Raw Data and CCIRs
// ============================================================================

// CreateRawData files an observation
func (h *Handler) CreateRawData(w http.ResponseWriter, r *http.Request) {
	var req domain.NewRawData
	if !h.decode(w, r, &req) {
		return
	}

	raw, err := h.reports.CreateRawData(r.Context(), req)
	if err != nil {
		h.writeDomainError(w, "Failed to create raw data", err)
		return
	}
	h.writeJSON(w, domain.RawDataCreated{ID: raw.ID, Message: "Raw data created"}, http.StatusCreated)
}

// CreateCCIR stores a CCIR. CCIRs are active unless stated otherwise.
func (h *Handler) CreateCCIR(w http.ResponseWriter, r *http.Request) {
	var req CreateCCIRRequest
	if !h.decode(w, r, &req) {
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	ccir, err := h.reports.CreateCCIR(r.Context(), domain.CCIR{
		TeamID:      req.TeamID,
		Description: req.Description,
		Keywords:    req.Keywords,
		Active:      active,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to create CCIR", err)
		return
	}
	h.writeJSON(w, ccir, http.StatusCreated)
}

// ============================================================================
// Bullet Points
// ============================================================================

// GetHierarchy returns the full bullet-point forest
func (h *Handler) GetHierarchy(w http.ResponseWriter, r *http.Request) {
	forest, err := h.reports.Hierarchy(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to get hierarchy", err)
		return
	}
	h.writeJSON(w, forest, http.StatusOK)
}

// GetBulletPoint returns one bullet point with its child ids
func (h *Handler) GetBulletPoint(w http.ResponseWriter, r *http.Request) {
	bpID, ok := h.pathID(w, r, "bpID")
	if !ok {
		return
	}

	details, err := h.reports.GetBulletPointDetails(r.Context(), bpID)
	if err != nil {
		h.writeDomainError(w, "Failed to get bullet point", err)
		return
	}
	h.writeJSON(w, details, http.StatusOK)
}

// CreateBulletPoint files a bullet point with its sources
func (h *Handler) CreateBulletPoint(w http.ResponseWriter, r *http.Request) {
	var req domain.NewBulletPoint
	if !h.decode(w, r, &req) {
		return
	}

	bp, err := h.reports.CreateBulletPoint(r.Context(), req)
	if err != nil {
		h.writeDomainError(w, "Failed to create bullet point", err)
		return
	}
	h.writeJSON(w, BulletPointCreated{ID: bp.ID, Message: "Bullet point created"}, http.StatusCreated)
}

// LinkBulletPoints records a parent -> child provenance edge
func (h *Handler) LinkBulletPoints(w http.ResponseWriter, r *http.Request) {
	var req domain.Link
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.reports.LinkBulletPoints(r.Context(), req); err != nil {
		h.writeDomainError(w, "Failed to link bullet points", err)
		return
	}
	h.writeJSON(w, MessageResponse{
		Message: fmt.Sprintf("Linked bullet point %d as a child of %d", req.ChildID, req.ParentID),
	}, http.StatusOK)
}

// InvalidateBulletPoint marks a bullet point invalid
func (h *Handler) InvalidateBulletPoint(w http.ResponseWriter, r *http.Request) {
	bpID, ok := h.pathID(w, r, "bpID")
	if !ok {
		return
	}

	affected, err := h.reports.InvalidateBulletPoint(r.Context(), bpID)
	if err != nil {
		h.writeDomainError(w, "Failed to invalidate bullet point", err)
		return
	}
	h.writeJSON(w, MessageResponse{
		Message:  fmt.Sprintf("Bullet point %d invalidated", bpID),
		ID:       bpID,
		Affected: affected,
	}, http.StatusOK)
}

// RegenerateSummaries rebuilds the bullet-point hierarchy for ?ccir=
func (h *Handler) RegenerateSummaries(w http.ResponseWriter, r *http.Request) {
	result, err := h.summaries.Regenerate(r.Context(), r.URL.Query().Get("ccir"))
	if err != nil {
		h.writeDomainError(w, "Failed to regenerate summaries", err)
		return
	}
	h.writeJSON(w, result, http.StatusOK)
}

// ============================================================================
// Import / export
// ============================================================================

const maxSeedBytes = 10 << 20

// ExportSeed writes teams, CCIRs and raw data in the format named by the path
func (h *Handler) ExportSeed(w http.ResponseWriter, r *http.Request) {
	c, err := codec.ForFormat(chi.URLParam(r, "format"))
	if err != nil {
		h.writeDomainError(w, "Unsupported format", err)
		return
	}

	seed, err := h.reports.ExportSeed(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to export seed", err)
		return
	}

	w.Header().Set("Content-Type", contentTypes[c.Format()])
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=echelon-seed.%s", c.Format()))
	if err := c.Export(seed, w); err != nil {
		h.logger.Error("failed to write seed export", zap.Error(err))
	}
}

// ImportSeed loads a seed document in the format named by the path
func (h *Handler) ImportSeed(w http.ResponseWriter, r *http.Request) {
	c, err := codec.ForFormat(chi.URLParam(r, "format"))
	if err != nil {
		h.writeDomainError(w, "Unsupported format", err)
		return
	}

	seed, err := c.Parse(http.MaxBytesReader(w, r.Body, maxSeedBytes))
	if err != nil {
		h.writeError(w, "Invalid seed document", err.Error(), http.StatusBadRequest)
		return
	}
	if err := loader.Validate(seed); err != nil {
		h.writeDomainError(w, "Invalid seed document", err)
		return
	}

	if err := h.reports.ImportSeed(r.Context(), seed); err != nil {
		h.writeDomainError(w, "Failed to import seed", err)
		return
	}
	h.writeJSON(w, MessageResponse{
		Message: fmt.Sprintf("Imported %d teams, %d CCIRs and %d raw data", len(seed.Teams), len(seed.CCIRs), len(seed.RawData)),
	}, http.StatusOK)
}

var contentTypes = map[string]string{
	"json": "application/json",
	"yaml": "application/yaml",
}

// ============================================================================
// Helper methods
// ============================================================================

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return false
	}
	if err := validateRequest(dst); err != nil {
		h.writeDomainError(w, "Invalid request body", err)
		return false
	}
	return true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	raw := chi.URLParam(r, param)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, "Invalid ID", fmt.Sprintf("%q is not a positive integer", raw), http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (h *Handler) queryBool(w http.ResponseWriter, r *http.Request, name string, def bool) (bool, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		h.writeError(w, "Invalid query parameter", fmt.Sprintf("%s=%q is not a boolean", name, raw), http.StatusBadRequest)
		return false, false
	}
	return v, true
}

// statusFor maps a domain error kind to its HTTP status
func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidInput:
		return http.StatusBadRequest
	case domain.KindCycleDetected:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeDomainError(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(msg, zap.Error(err))
	}
	h.writeError(w, msg, err.Error(), status)
}

func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, error, details string, statusCode int) {
	h.writeJSON(w, ErrorResponse{Error: error, Details: details}, statusCode)
}
