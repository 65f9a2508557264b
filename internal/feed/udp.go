package feed

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/ferrule-robotics/missiond/internal/db"
	"github.com/ferrule-robotics/missiond/internal/monitoring"
)

// UDPConfig configures the optional datagram pose input.
type UDPConfig struct {
	// Address is the listen address, e.g. ":9988".
	Address string
	// RcvBuf is the socket receive buffer size in bytes. Zero keeps the
	// system default.
	RcvBuf int
	// LogInterval is how often traffic stats get logged. Zero means one
	// minute.
	LogInterval time.Duration

	Feed Config
}

// UDPFeed receives pose updates as datagrams, one JSON pose message per
// packet, for localization systems that broadcast over UDP instead of
// talking on the base link.
type UDPFeed struct {
	address     string
	rcvBuf      int
	logInterval time.Duration
	conn        *net.UDPConn
	*sink
}

func NewUDPFeed(cfg UDPConfig) *UDPFeed {
	logInterval := cfg.LogInterval
	if logInterval == 0 {
		logInterval = time.Minute
	}
	feedCfg := cfg.Feed
	if feedCfg.Source == "" {
		feedCfg.Source = db.PoseSourceUDP
	}
	return &UDPFeed{
		address:     cfg.Address,
		rcvBuf:      cfg.RcvBuf,
		logInterval: logInterval,
		sink:        newSink(feedCfg),
	}
}

// Listen binds the socket. Run calls it when needed; the split exists so
// callers listening on port zero can learn the bound address before
// traffic starts.
func (f *UDPFeed) Listen() error {
	addr, err := net.ResolveUDPAddr("udp", f.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	if f.rcvBuf > 0 {
		if err := conn.SetReadBuffer(f.rcvBuf); err != nil {
			monitoring.Warnf("pose feed (%s): failed to set receive buffer to %d: %v", f.source, f.rcvBuf, err)
		}
	}
	f.conn = conn
	return nil
}

// LocalAddr reports the bound address, or nil before Listen.
func (f *UDPFeed) LocalAddr() net.Addr {
	if f.conn == nil {
		return nil
	}
	return f.conn.LocalAddr()
}

// Run receives datagrams until the context ends. The read loop uses short
// deadlines so cancellation is noticed promptly even when the feed is
// silent.
func (f *UDPFeed) Run(ctx context.Context) error {
	if f.conn == nil {
		if err := f.Listen(); err != nil {
			return err
		}
	}
	defer f.conn.Close()

	monitoring.Logf("pose feed (%s): listening on %s", f.source, f.conn.LocalAddr())

	go f.logStats(ctx)

	buffer := make([]byte, 2048)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			f.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
			n, _, err := f.conn.ReadFromUDP(buffer)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				monitoring.Warnf("pose feed (%s): read error: %v", f.source, err)
				continue
			}
			f.handleDatagram(buffer[:n])
		}
	}
}

// handleDatagram feeds each line of one packet through the sink. A packet
// normally carries exactly one pose line, but replayed captures may batch.
func (f *UDPFeed) handleDatagram(packet []byte) {
	for _, line := range strings.Split(string(packet), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		f.handleLine(line)
	}
}

func (f *UDPFeed) logStats(ctx context.Context) {
	ticker := time.NewTicker(f.logInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.stats.LogStats(f.source)
		}
	}
}
