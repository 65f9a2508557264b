//go:build pcap
// +build pcap

package feed

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/ferrule-robotics/missiond/internal/monitoring"
)

// ReplayConfig controls capture replay behaviour.
type ReplayConfig struct {
	// SpeedMultiplier scales replay speed (1.0 = as captured, 2.0 = twice
	// as fast). Values <= 0 mean 1.0.
	SpeedMultiplier float64
	// Port restricts the capture to UDP packets on one port. Zero replays
	// every UDP packet in the file.
	Port int
}

// ReplayPCAP reads a capture of pose datagrams and resends each UDP payload
// to target, preserving the recorded inter-packet timing scaled by the speed
// multiplier. It returns when the capture is exhausted or the context ends.
func ReplayPCAP(ctx context.Context, pcapFile, target string, cfg ReplayConfig) error {
	if cfg.SpeedMultiplier <= 0 {
		cfg.SpeedMultiplier = 1.0
	}

	handle, err := pcap.OpenOffline(pcapFile)
	if err != nil {
		return fmt.Errorf("failed to open capture %s: %w", pcapFile, err)
	}
	defer handle.Close()

	filterStr := "udp"
	if cfg.Port > 0 {
		filterStr = fmt.Sprintf("udp port %d", cfg.Port)
	}
	if err := handle.SetBPFFilter(filterStr); err != nil {
		return fmt.Errorf("failed to set BPF filter '%s': %w", filterStr, err)
	}

	raddr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return fmt.Errorf("failed to resolve replay target: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return fmt.Errorf("failed to dial replay target: %w", err)
	}
	defer conn.Close()

	monitoring.Logf("pose replay: %s -> %s, filter '%s', speed %.1fx",
		pcapFile, target, filterStr, cfg.SpeedMultiplier)

	packetSource := gopacket.NewPacketSource(handle, handle.LinkType())
	sentCount := 0
	sendErrors := 0
	startTime := time.Now()

	var lastCapture time.Time

	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("pose replay stopping: sent %d packets", sentCount)
			return ctx.Err()
		case packet := <-packetSource.Packets():
			if packet == nil {
				// End of capture.
				elapsed := time.Since(startTime)
				monitoring.Logf("pose replay complete: %d packets in %v (%d send errors)",
					sentCount, elapsed.Round(time.Millisecond), sendErrors)
				return nil
			}

			captureTime := packet.Metadata().Timestamp
			if !lastCapture.IsZero() {
				delay := captureTime.Sub(lastCapture)
				scaled := time.Duration(float64(delay) / cfg.SpeedMultiplier)
				if scaled > 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-time.After(scaled):
					}
				}
			}
			lastCapture = captureTime

			udpLayer := packet.Layer(layers.LayerTypeUDP)
			if udpLayer == nil {
				continue
			}
			udp, ok := udpLayer.(*layers.UDP)
			if !ok {
				continue
			}
			payload := udp.Payload
			if len(payload) == 0 {
				continue
			}

			if _, err := conn.Write(payload); err != nil {
				sendErrors++
				if sendErrors == 1 {
					monitoring.Warnf("pose replay: send failed: %v", err)
				}
				continue
			}
			sentCount++

			if sentCount%1000 == 0 {
				elapsed := time.Since(startTime)
				monitoring.Logf("pose replay progress: %d packets in %v (speed %.1fx)",
					sentCount, elapsed.Round(time.Second), cfg.SpeedMultiplier)
			}
		}
	}
}
