package linkmux

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/ferrule-robotics/missiond/internal/monitoring"
)

// DisabledLinkMux is a no-op Mux for running without a base link (pose
// feedback arriving over UDP only, or pure API inspection). Outbound goal
// lines are logged and dropped. Subscribers are tracked so their channels
// close deterministically on Unsubscribe or Close and readers unblock
// during shutdown.
type DisabledLinkMux struct {
	mu          sync.Mutex
	subscribers map[string]chan string
	closing     bool
}

func NewDisabledLinkMux() *DisabledLinkMux {
	return &DisabledLinkMux{
		subscribers: make(map[string]chan string),
	}
}

func (d *DisabledLinkMux) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string, subscriberBuffer)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		// Already closing: hand back a closed channel so callers don't block.
		close(ch)
		return id, ch
	}
	d.subscribers[id] = ch
	return id, ch
}

func (d *DisabledLinkMux) Unsubscribe(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ch, ok := d.subscribers[id]; ok {
		close(ch)
		delete(d.subscribers, id)
	}
}

func (d *DisabledLinkMux) SendLine(line string) error {
	monitoring.Warnf("link disabled: dropped outbound line %q", strings.TrimRight(line, "\n"))
	return nil
}

func (d *DisabledLinkMux) Monitor(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (d *DisabledLinkMux) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		return nil
	}
	d.closing = true
	for id, ch := range d.subscribers {
		close(ch)
		delete(d.subscribers, id)
	}
	return nil
}

func (d *DisabledLinkMux) AttachAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/link-disabled", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("base link disabled"))
	})
}
