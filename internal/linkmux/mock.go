package linkmux

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/ferrule-robotics/missiond/internal/monitoring"
)

// MockLinkPort is a link that emits a fixed line at a fixed interval and
// discards writes. It lets the daemon run with no controller attached.
type MockLinkPort struct {
	io.Reader
	w io.Closer
}

func (m *MockLinkPort) Write(p []byte) (int, error) {
	monitoring.Logf("mock link: dropped outbound line %q", bytes.TrimRight(p, "\n"))
	return len(p), nil
}

func (m *MockLinkPort) Close() error { return m.w.Close() }

// NewMockLinkMux builds a mux over a mock link that repeats line every
// interval. Goals published to it go nowhere; the emitted line is
// typically a pose message so the feed pipeline can be exercised end to
// end.
func NewMockLinkMux(line []byte, interval time.Duration) *LinkMux[*MockLinkPort] {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if !bytes.HasSuffix(line, []byte("\n")) {
		line = append(line, '\n')
	}

	r, w := io.Pipe()
	go func() {
		defer w.Close()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			if _, err := w.Write(line); err != nil {
				return
			}
		}
	}()

	return NewLinkMux(&MockLinkPort{Reader: r, w: w})
}

// TestableLinkPort is an in-memory link with scriptable reads, captured
// writes and injectable errors.
type TestableLinkPort struct {
	mu       sync.Mutex
	readCond *sync.Cond

	readBuf  bytes.Buffer
	writeBuf bytes.Buffer

	// BlockReads makes Read wait for AddReadData instead of returning EOF
	// on an empty buffer, mimicking an idle link.
	BlockReads bool

	ReadError  error
	WriteError error
	CloseError error

	Closed     bool
	WriteCalls int
}

func NewTestableLinkPort() *TestableLinkPort {
	p := &TestableLinkPort{}
	p.readCond = sync.NewCond(&p.mu)
	return p
}

func (p *TestableLinkPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Closed {
		return 0, errors.New("link closed")
	}
	if p.ReadError != nil {
		err := p.ReadError
		p.ReadError = nil
		return 0, err
	}
	if p.BlockReads {
		for !p.Closed && p.readBuf.Len() == 0 {
			p.readCond.Wait()
		}
		if p.Closed {
			return 0, errors.New("link closed")
		}
	}
	return p.readBuf.Read(b)
}

func (p *TestableLinkPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.WriteCalls++
	if p.Closed {
		return 0, errors.New("link closed")
	}
	if p.WriteError != nil {
		err := p.WriteError
		p.WriteError = nil
		return 0, err
	}
	return p.writeBuf.Write(b)
}

func (p *TestableLinkPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	p.readCond.Broadcast()
	return p.CloseError
}

// AddReadData queues data for subsequent reads and wakes a blocked reader.
func (p *TestableLinkPort) AddReadData(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readBuf.Write(data)
	p.readCond.Signal()
}

// Written returns a copy of everything written to the port.
func (p *TestableLinkPort) Written() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]byte, p.writeBuf.Len())
	copy(out, p.writeBuf.Bytes())
	return out
}
