package feed

import (
	"fmt"
	"sync"
	"time"

	"github.com/ferrule-robotics/missiond/internal/monitoring"
)

// Stats tracks feed traffic counters with thread-safe operations.
type Stats struct {
	mu          sync.Mutex
	poseCount   int64
	byteCount   int64
	parseErrors int64
	skipped     int64
	lastReset   time.Time
}

func NewStats() *Stats {
	return &Stats{lastReset: time.Now()}
}

// AddPose increments the accepted pose count.
func (s *Stats) AddPose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.poseCount++
}

// AddBytes adds to the received byte count.
func (s *Stats) AddBytes(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byteCount += int64(n)
}

// AddParseError increments the count of lines that classified as poses but
// failed to decode.
func (s *Stats) AddParseError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parseErrors++
}

// AddSkipped increments the count of non-pose lines.
func (s *Stats) AddSkipped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipped++
}

// GetAndReset returns current counters and resets them.
func (s *Stats) GetAndReset() (poses, bytes, parseErrors, skipped int64, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	duration = now.Sub(s.lastReset)
	poses = s.poseCount
	bytes = s.byteCount
	parseErrors = s.parseErrors
	skipped = s.skipped

	s.poseCount = 0
	s.byteCount = 0
	s.parseErrors = 0
	s.skipped = 0
	s.lastReset = now

	return
}

// LogStats logs one rate line when there was any traffic since the last
// reset, and stays silent otherwise.
func (s *Stats) LogStats(source string) {
	poses, bytes, parseErrors, skipped, duration := s.GetAndReset()
	if poses == 0 && parseErrors == 0 && skipped == 0 {
		return
	}

	posesPerSec := float64(poses) / duration.Seconds()
	kbPerSec := float64(bytes) / duration.Seconds() / 1024

	msg := fmt.Sprintf("pose feed (%s) stats (/sec): %.1f poses, %.2f KB", source, posesPerSec, kbPerSec)
	if parseErrors > 0 {
		msg += fmt.Sprintf(", %d parse errors", parseErrors)
	}
	if skipped > 0 {
		msg += fmt.Sprintf(", %d skipped lines", skipped)
	}
	monitoring.Logf("%s", msg)
}
