// Command pose-replay resends a packet capture of pose datagrams to a
// mission daemon's UDP pose feed, preserving the recorded timing.
//
// Reading captures needs libpcap, so build with the pcap tag:
//
//	go run -tags pcap ./cmd/tools/pose-replay [flags]
//
// Flags:
//
//	-pcap      Capture file to replay (required)
//	-target    UDP address of the daemon's -udp-feed listener (default: 127.0.0.1:9988)
//	-port      Only replay packets captured on this UDP port (default: 0, all UDP)
//	-speed     Replay speed multiplier (default: 1.0)
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ferrule-robotics/missiond/internal/feed"
)

func main() {
	pcapFile := flag.String("pcap", "", "Capture file to replay (required)")
	target := flag.String("target", "127.0.0.1:9988", "UDP address to send datagrams to")
	port := flag.Int("port", 0, "Only replay packets captured on this UDP port (0 = all UDP)")
	speed := flag.Float64("speed", 1.0, "Replay speed multiplier")
	flag.Parse()

	if *pcapFile == "" {
		fmt.Fprintln(os.Stderr, "Error: -pcap flag is required")
		flag.Usage()
		os.Exit(1)
	}
	if _, err := os.Stat(*pcapFile); os.IsNotExist(err) {
		log.Fatalf("Capture file does not exist: %s", *pcapFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := feed.ReplayConfig{SpeedMultiplier: *speed, Port: *port}
	if err := feed.ReplayPCAP(ctx, *pcapFile, *target, cfg); err != nil && err != context.Canceled {
		log.Fatalf("Replay failed: %v", err)
	}
}
