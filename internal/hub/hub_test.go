package hub

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"echelon/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	msg, err := Format(3, domain.Event{
		Type:          domain.EventBulletPointInvalidated,
		BulletPointID: 5,
		Affected:      []int64{7},
	})
	require.NoError(t, err)

	text := string(msg)
	assert.True(t, strings.HasPrefix(text, "id: 3\nevent: bullet_point_invalidated\ndata: {"))
	assert.Contains(t, text, `"bp_id":5`)
	assert.Contains(t, text, `"affected":[7]`)
	assert.True(t, strings.HasSuffix(text, "\n\n"))
}

func TestParseTypes(t *testing.T) {
	types, err := parseTypes("")
	require.NoError(t, err)
	assert.Nil(t, types)

	types, err = parseTypes("team_created, seed_reloaded,")
	require.NoError(t, err)
	assert.Len(t, types, 2)
	assert.Contains(t, types, domain.EventSeedReloaded)

	_, err = parseTypes("team_created,bogus")
	assert.True(t, domain.IsInvalidInput(err))
}

func readLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	return strings.TrimRight(line, "\n")
}

// connect opens a stream and consumes the greeting
func connect(t *testing.T, url string) (*bufio.Reader, func()) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	assert.True(t, strings.HasPrefix(readLine(t, r), ": connected "))
	assert.Equal(t, "", readLine(t, r))
	return r, func() { resp.Body.Close() }
}

func TestHubStreamsEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New(nil)
	go h.Run(ctx)

	srv := httptest.NewServer(h)
	defer srv.Close()

	r, done := connect(t, srv.URL)
	defer done()
	assert.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	h.Broadcast(domain.Event{Type: domain.EventSummariesRegenerated, Keyword: "fuel"})
	h.Broadcast(domain.Event{Type: domain.EventTeamCreated, TeamID: 9})

	assert.Equal(t, "id: 1", readLine(t, r))
	assert.Equal(t, "event: summaries_regenerated", readLine(t, r))
	data := readLine(t, r)
	assert.True(t, strings.HasPrefix(data, "data: "))
	assert.Contains(t, data, `"ccir":"fuel"`)
	assert.Equal(t, "", readLine(t, r))

	assert.Equal(t, "id: 2", readLine(t, r))
	assert.Equal(t, "event: team_created", readLine(t, r))
}

func TestBroadcastDropLeavesIDGap(t *testing.T) {
	h := New(nil)
	h.events = make(chan queued, 2)

	for i := int64(1); i <= 5; i++ {
		h.Broadcast(domain.Event{Type: domain.EventBulletPointInvalidated, BulletPointID: i})
	}
	first, second := <-h.events, <-h.events
	assert.Equal(t, uint64(1), first.seq)
	assert.Equal(t, uint64(2), second.seq)

	h.Broadcast(domain.Event{Type: domain.EventBulletPointInvalidated, BulletPointID: 6})
	next := <-h.events
	assert.Equal(t, uint64(6), next.seq, "ids 3-5 were dropped and must not be reused")
	assert.Equal(t, int64(6), next.event.BulletPointID)
}

func TestHubStreamsBurstWithoutGaps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New(nil)
	go h.Run(ctx)

	srv := httptest.NewServer(h)
	defer srv.Close()

	r, done := connect(t, srv.URL)
	defer done()
	assert.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	const burst = 20
	for i := int64(1); i <= burst; i++ {
		h.Broadcast(domain.Event{Type: domain.EventBulletPointInvalidated, BulletPointID: i})
	}

	for i := 1; i <= burst; i++ {
		assert.Equal(t, fmt.Sprintf("id: %d", i), readLine(t, r))
		readLine(t, r) // event
		readLine(t, r) // data
		readLine(t, r)
	}
}

func TestHubFiltersByType(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New(nil)
	go h.Run(ctx)

	srv := httptest.NewServer(h)
	defer srv.Close()

	r, done := connect(t, srv.URL+"?types=seed_reloaded")
	defer done()
	assert.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	h.Broadcast(domain.Event{Type: domain.EventTeamCreated, TeamID: 9})
	h.Broadcast(domain.Event{Type: domain.EventSeedReloaded})

	// ids are assigned hub-wide, so the filtered stream skips 1
	assert.Equal(t, "id: 2", readLine(t, r))
	assert.Equal(t, "event: seed_reloaded", readLine(t, r))
}

func TestHubRejectsUnknownType(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New(nil)
	go h.Run(ctx)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events?types=nope", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, h.ClientCount())
}

func TestHubDropsClientOnDisconnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New(nil)
	go h.Run(ctx)

	srv := httptest.NewServer(h)
	defer srv.Close()

	reqCtx, reqCancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	readLine(t, bufio.NewReader(resp.Body))
	assert.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	reqCancel()
	resp.Body.Close()

	assert.Eventually(t, func() bool { return h.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServeAfterStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := New(nil)
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
