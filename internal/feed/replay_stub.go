//go:build !pcap
// +build !pcap

package feed

import (
	"context"
	"fmt"
)

// ReplayConfig controls capture replay behaviour.
type ReplayConfig struct {
	SpeedMultiplier float64
	Port            int
}

// ReplayPCAP is a stub that returns an error when pcap support is not
// compiled in.
func ReplayPCAP(ctx context.Context, pcapFile, target string, cfg ReplayConfig) error {
	return fmt.Errorf("capture replay support not compiled in (requires pcap build tag)")
}
