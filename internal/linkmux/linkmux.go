// Package linkmux multiplexes the base link: the line-oriented connection
// to the robot's motion controller. A single reader goroutine fans inbound
// lines out to any number of subscribers (pose feed, SSE tail, tools),
// while outbound goal lines are serialized through one writer. The link
// itself may be a serial port, a TCP connection, or a mock.
package linkmux

import (
	"bufio"
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"sync"
)

var ErrShortWrite = errors.New("short write to base link")

// subscriberBuffer absorbs bursts while a subscriber is busy (the pose
// feed writes to the mission log between reads). A subscriber that falls
// further behind than this loses lines rather than stalling the reader.
const subscriberBuffer = 64

// Mux is the interface the rest of the daemon wires against.
type Mux interface {
	// Subscribe registers a new line channel. The returned id identifies
	// the channel for Unsubscribe.
	Subscribe() (string, chan string)
	// Unsubscribe closes and removes a subscriber channel.
	Unsubscribe(string)
	// SendLine writes one line to the link, appending the newline if
	// missing. Safe for concurrent use.
	SendLine(string) error
	// Monitor reads lines from the link and fans them out to subscribers
	// until the context ends or the link fails.
	Monitor(context.Context) error
	// Close closes all subscriber channels and the underlying link.
	Close() error

	// AttachAdminRoutes registers the link debug endpoints (raw line send,
	// SSE tail) on the given HTTP mux under /debug/.
	AttachAdminRoutes(*http.ServeMux)
}

// LinkMux is the generic multiplexer over any line-oriented link.
type LinkMux[T LinkPorter] struct {
	port T

	subscriberMu sync.Mutex
	subscribers  map[string]chan string

	writeMu sync.Mutex

	closingMu sync.Mutex
	closing   bool
}

// NewLinkMux wraps an already-open link.
func NewLinkMux[T LinkPorter](port T) *LinkMux[T] {
	return &LinkMux[T]{
		port:        port,
		subscribers: make(map[string]chan string),
	}
}

// randomID returns an 8-byte random hex token used as a subscriber id.
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

func (m *LinkMux[T]) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string, subscriberBuffer)
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	m.subscribers[id] = ch
	return id, ch
}

func (m *LinkMux[T]) Unsubscribe(id string) {
	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	if ch, ok := m.subscribers[id]; ok {
		close(ch)
		delete(m.subscribers, id)
	}
}

// SendLine writes one line to the link. Writes are serialized so goal
// commands and admin-sent lines never interleave mid-line.
func (m *LinkMux[T]) SendLine(line string) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	n, err := m.port.Write([]byte(line))
	if err != nil {
		return err
	}
	if n != len(line) {
		return ErrShortWrite
	}
	return nil
}

// Monitor reads lines from the link and delivers them to every subscriber.
// A subscriber whose buffer is full is skipped, never waited on. Monitor
// returns when the context ends, the link reader fails, or the link hits
// EOF.
func (m *LinkMux[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(m.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// The blocking scan.Scan runs in its own goroutine so the fan-out loop
	// below can also watch for context cancellation.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return err

		case line, ok := <-lineChan:
			if !ok {
				// Reader finished: EOF or error.
				if err := scan.Err(); err != nil {
					return err
				}
				return nil
			}

			m.closingMu.Lock()
			if m.closing {
				m.closingMu.Unlock()
				return nil
			}
			m.closingMu.Unlock()

			m.subscriberMu.Lock()
			for _, ch := range m.subscribers {
				select {
				case ch <- line:
				default:
					// Skip subscribers that fell behind.
				}
			}
			m.subscriberMu.Unlock()
		}
	}
}

func (m *LinkMux[T]) Close() error {
	m.closingMu.Lock()
	m.closing = true
	m.closingMu.Unlock()

	m.subscriberMu.Lock()
	defer m.subscriberMu.Unlock()
	for id, ch := range m.subscribers {
		close(ch)
		delete(m.subscribers, id)
	}
	return m.port.Close()
}
