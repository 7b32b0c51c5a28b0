package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"

	"github.com/ophion/companion/internal/application/workspace"
)

// eventStream writes Server-Sent Events to an echo response
type eventStream struct {
	res *echo.Response
}

func openEventStream(c echo.Context) *eventStream {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	res.Flush()
	return &eventStream{res: res}
}

// send writes one event with a JSON payload
func (s *eventStream) send(event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}
	if _, err := fmt.Fprintf(s.res, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	s.res.Flush()
	return nil
}

// ping keeps idle connections open through proxies
func (s *eventStream) ping() error {
	if _, err := fmt.Fprint(s.res, ": ping\n\n"); err != nil {
		return err
	}
	s.res.Flush()
	return nil
}

// viewSlot holds the newest undelivered view of one connection. Offers
// never block and an older version never replaces a newer one.
type viewSlot struct {
	mu    sync.Mutex
	view  *workspace.View
	ready chan struct{}
}

func newViewSlot() *viewSlot {
	return &viewSlot{ready: make(chan struct{}, 1)}
}

func (s *viewSlot) offer(v *workspace.View) {
	if v == nil {
		return
	}
	s.mu.Lock()
	if s.view == nil || v.Version > s.view.Version {
		s.view = v
	}
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// take empties the slot
func (s *viewSlot) take() *workspace.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.view
	s.view = nil
	return v
}
