// Package client is the HTTP implementation of the data service used by
// the coordinator.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"echelon/internal/coordinator"
	"echelon/internal/domain"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerSettings tunes the circuit breaker in front of the data service
type BreakerSettings struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerSettings returns the settings used when none are given
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:      1,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// Client talks to the data service HTTP API. A 404 surfaces as NotFound,
// a 400 as InvalidInput and a 409 as CycleDetected. Everything else,
// including an open breaker, is RequestFailed.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	settings   BreakerSettings
	logger     *zap.Logger
}

var _ coordinator.DataService = (*Client)(nil)

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: d}
	}
}

// WithBreaker replaces the default breaker settings
func WithBreaker(s BreakerSettings) Option {
	return func(c *Client) {
		c.settings = s
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for the data service at baseURL
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, domain.InvalidInput(fmt.Sprintf("invalid base URL %q", baseURL))
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		settings:   DefaultBreakerSettings(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	s := c.settings
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "data-service",
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Only trip if we have enough requests to make a decision
			if counts.Requests < s.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= s.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// Lookups of unknown ids and rejected input are answers, not outages
		IsSuccessful: func(err error) bool {
			switch domain.KindOf(err) {
			case domain.KindNotFound, domain.KindInvalidInput, domain.KindCycleDetected:
				return true
			}
			return err == nil
		},
	})

	return c, nil
}

// BreakerState reports the circuit breaker state
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// ============================================================================
// Data service operations
// ============================================================================

// ListTeams returns every team
func (c *Client) ListTeams(ctx context.Context) ([]domain.Team, error) {
	var teams []domain.Team
	if err := c.do(ctx, http.MethodGet, "/api/teams", nil, nil, &teams); err != nil {
		return nil, err
	}
	return teams, nil
}

// GetHierarchy returns the full bullet-point forest
func (c *Client) GetHierarchy(ctx context.Context) ([]domain.BulletPoint, error) {
	var forest []domain.BulletPoint
	if err := c.do(ctx, http.MethodGet, "/api/hierarchy", nil, nil, &forest); err != nil {
		return nil, err
	}
	return forest, nil
}

// GetTeamHierarchy returns the forest scoped to one team
func (c *Client) GetTeamHierarchy(ctx context.Context, teamID int64, includeSubteams bool) ([]domain.BulletPoint, error) {
	q := url.Values{"include_subteams": {strconv.FormatBool(includeSubteams)}}
	var forest []domain.BulletPoint
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/teams/%d/hierarchy", teamID), q, nil, &forest); err != nil {
		return nil, err
	}
	return forest, nil
}

// GetBulletPointDetails returns one bullet point with its child ids
func (c *Client) GetBulletPointDetails(ctx context.Context, bpID int64) (domain.BulletPointDetails, error) {
	var details domain.BulletPointDetails
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/bullet-points/%d", bpID), nil, nil, &details); err != nil {
		return domain.BulletPointDetails{}, err
	}
	return details, nil
}

// CreateRawData files an observation
func (c *Client) CreateRawData(ctx context.Context, in domain.NewRawData) (domain.RawDataCreated, error) {
	var out domain.RawDataCreated
	if err := c.do(ctx, http.MethodPost, "/api/raw-data", nil, in, &out); err != nil {
		return domain.RawDataCreated{}, err
	}
	return out, nil
}

// CreateBulletPoint files a bullet point and returns its id
func (c *Client) CreateBulletPoint(ctx context.Context, in domain.NewBulletPoint) (int64, error) {
	var out struct {
		ID int64 `json:"bp_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/bullet-points", nil, in, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

// LinkBulletPoints records that child is a source of parent
func (c *Client) LinkBulletPoints(ctx context.Context, parentID, childID int64) (string, error) {
	var out messageResponse
	link := domain.Link{ParentID: parentID, ChildID: childID}
	if err := c.do(ctx, http.MethodPost, "/api/bullet-points/link", nil, link, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// InvalidateBulletPoint marks a bullet point invalid
func (c *Client) InvalidateBulletPoint(ctx context.Context, bpID int64) (string, error) {
	var out messageResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/bullet-points/%d/invalidate", bpID), nil, nil, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// RegenerateSummaries rebuilds the hierarchy for a CCIR keyword
func (c *Client) RegenerateSummaries(ctx context.Context, keyword string) (domain.RegenerateResult, error) {
	q := url.Values{}
	if keyword != "" {
		q.Set("ccir", keyword)
	}
	var out domain.RegenerateResult
	if err := c.do(ctx, http.MethodPost, "/api/summaries/regenerate", q, nil, &out); err != nil {
		return domain.RegenerateResult{}, err
	}
	return out, nil
}

// ============================================================================
// Supplemental operations
// ============================================================================

// CreateTeam adds a team
func (c *Client) CreateTeam(ctx context.Context, team domain.Team) (domain.Team, error) {
	var out domain.Team
	if err := c.do(ctx, http.MethodPost, "/api/teams", nil, team, &out); err != nil {
		return domain.Team{}, err
	}
	return out, nil
}

// TeamSubtree returns a team with its subordinates nested
func (c *Client) TeamSubtree(ctx context.Context, teamID int64) (domain.TeamNode, error) {
	var out domain.TeamNode
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/teams/%d/subtree", teamID), nil, nil, &out); err != nil {
		return domain.TeamNode{}, err
	}
	return out, nil
}

// CreateCCIR stores a CCIR
func (c *Client) CreateCCIR(ctx context.Context, ccir domain.CCIR) (domain.CCIR, error) {
	var out domain.CCIR
	if err := c.do(ctx, http.MethodPost, "/api/ccirs", nil, ccir, &out); err != nil {
		return domain.CCIR{}, err
	}
	return out, nil
}

// ListTeamRawData returns the observations of one team
func (c *Client) ListTeamRawData(ctx context.Context, teamID int64) ([]domain.RawData, error) {
	var out []domain.RawData
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/teams/%d/raw-data", teamID), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ExportSeed downloads every team, CCIR and raw observation
func (c *Client) ExportSeed(ctx context.Context) (*domain.SeedFragment, error) {
	seed := domain.NewSeedFragment()
	if err := c.do(ctx, http.MethodGet, "/api/export/json", nil, nil, seed); err != nil {
		return nil, err
	}
	return seed, nil
}

// ImportSeed uploads a seed fragment
func (c *Client) ImportSeed(ctx context.Context, seed *domain.SeedFragment) (string, error) {
	var out messageResponse
	if err := c.do(ctx, http.MethodPost, "/api/import/json", nil, seed, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// ============================================================================
// Transport
// ============================================================================

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}
	op := method + " " + path

	_, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), bytes.NewReader(payload))
		if err != nil {
			return nil, domain.RequestFailed(op, err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-ID", uuid.NewString())
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, domain.RequestFailed(op, err)
		}
		defer resp.Body.Close()

		c.logger.Debug("data service request",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.Duration("duration", time.Since(start)),
		)

		if resp.StatusCode >= 400 {
			return nil, statusError(op, resp)
		}
		if out == nil {
			return nil, nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, domain.RequestFailed(op+": decode response", err)
		}
		return nil, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domain.RequestFailed(op+": data service unavailable", err)
	}
	return err
}

// statusError maps a non-2xx response to a domain error
func statusError(op string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var er errorResponse
	detail := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &er) == nil && er.Error != "" {
		detail = er.Error
		if er.Details != "" {
			detail += ": " + er.Details
		}
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return domain.NotFound("%s: %s", op, detail)
	case http.StatusBadRequest:
		return domain.InvalidInput(fmt.Sprintf("%s: %s", op, detail))
	case http.StatusConflict:
		return &domain.Error{Kind: domain.KindCycleDetected, Message: fmt.Sprintf("%s: %s", op, detail)}
	}
	return domain.RequestFailed(fmt.Sprintf("%s: status %d", op, resp.StatusCode), errors.New(detail))
}
