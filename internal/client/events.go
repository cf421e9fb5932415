package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"echelon/internal/domain"

	"go.uber.org/zap"
)

// Subscribe streams mutation events from the data service until ctx is
// done or the stream ends. The stream bypasses the circuit breaker since
// it is a single long-lived request.
//
// When the event ids show that the service dropped messages for this
// subscriber, a seed_reloaded event is delivered first so consumers
// rebuild from scratch.
func (c *Client) Subscribe(ctx context.Context) (<-chan domain.Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/events", nil), nil)
	if err != nil {
		return nil, domain.RequestFailed("GET /events", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// The default client's timeout would cut the stream
	stream := &http.Client{Transport: c.httpClient.Transport}
	resp, err := stream.Do(req)
	if err != nil {
		return nil, domain.RequestFailed("GET /events", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, statusError("GET /events", resp)
	}

	events := make(chan domain.Event, 16)
	go func() {
		defer close(events)
		defer resp.Body.Close()
		c.readEvents(ctx, bufio.NewScanner(resp.Body), events)
	}()
	return events, nil
}

func (c *Client) readEvents(ctx context.Context, scanner *bufio.Scanner, out chan<- domain.Event) {
	var (
		data     strings.Builder
		id, last uint64
	)
	send := func(ev domain.Event) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() == 0 {
				continue
			}
			ev, err := decodeEvent(data.String())
			data.Reset()
			if err != nil {
				c.logger.Warn("dropping malformed event", zap.Error(err))
				continue
			}
			if last != 0 && id > last+1 {
				c.logger.Warn("missed events, resyncing", zap.Uint64("after", last), zap.Uint64("id", id))
				if !send(domain.Event{Type: domain.EventSeedReloaded}) {
					return
				}
			}
			if id != 0 {
				last = id
			}
			if !send(ev) {
				return
			}
		case strings.HasPrefix(line, ":"):
			// comment or keepalive
		case strings.HasPrefix(line, "id:"):
			if n, err := strconv.ParseUint(strings.TrimSpace(strings.TrimPrefix(line, "id:")), 10, 64); err == nil {
				id = n
			}
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		c.logger.Warn("event stream closed", zap.Error(err))
	}
}

func decodeEvent(data string) (domain.Event, error) {
	var ev domain.Event
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return domain.Event{}, fmt.Errorf("decode event: %w", err)
	}
	if ev.Type == "" {
		return domain.Event{}, fmt.Errorf("event without type")
	}
	return ev, nil
}
