// Package api serves the mission daemon's introspection and operator
// endpoints. Everything here is read-only except /command, which publishes
// a single goal by name as an operator override.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ferrule-robotics/missiond/internal/config"
	"github.com/ferrule-robotics/missiond/internal/db"
	"github.com/ferrule-robotics/missiond/internal/mission"
	"github.com/ferrule-robotics/missiond/internal/monitoring"
	"github.com/ferrule-robotics/missiond/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	plan *mission.Plan
	pub  mission.GoalPublisher
	db   *db.DB
	cfg  *config.Config
}

func NewServer(plan *mission.Plan, pub mission.GoalPublisher, store *db.DB, cfg *config.Config) *Server {
	return &Server{
		plan: plan,
		pub:  pub,
		db:   store,
		cfg:  cfg,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/plan", s.showPlan)
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/goal_events", s.listGoalEvents)
	mux.HandleFunc("/api/goal_stats", s.showGoalStats)
	mux.HandleFunc("/api/poses/recent", s.listRecentPoses)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/version", s.showVersion)
	mux.HandleFunc("/command", s.publishGoalHandler)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// limitParam parses an optional positive 'limit' query parameter. Zero
// means "not given"; the store applies its own default.
func limitParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, fmt.Errorf("invalid 'limit' parameter")
	}
	return limit, nil
}

func (s *Server) showPlan(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := json.NewEncoder(w).Encode(s.plan.Status()); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write plan status")
		return
	}
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit, err := limitParam(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
		return
	}

	runs, err := s.db.RecentRuns(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve runs: %v", err))
		return
	}
	if runs == nil {
		runs = []db.Run{}
	}

	if err := json.NewEncoder(w).Encode(runs); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write runs")
		return
	}
}

// listGoalEvents serves either one run's events (?run=N) or the most
// recent events across runs.
func (s *Server) listGoalEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var (
		events []db.GoalEventRow
		err    error
	)
	if raw := r.URL.Query().Get("run"); raw != "" {
		runID, parseErr := strconv.ParseInt(raw, 10, 64)
		if parseErr != nil || runID < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'run' parameter")
			return
		}
		events, err = s.db.GoalEventsForRun(runID)
	} else {
		limit, limitErr := limitParam(r)
		if limitErr != nil {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		events, err = s.db.RecentGoalEvents(limit)
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve goal events: %v", err))
		return
	}
	if events == nil {
		events = []db.GoalEventRow{}
	}

	if err := json.NewEncoder(w).Encode(events); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write goal events")
		return
	}
}

func (s *Server) showGoalStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	stats, err := s.db.GoalStats()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve goal stats: %v", err))
		return
	}
	if stats == nil {
		stats = []db.GoalStat{}
	}

	if err := json.NewEncoder(w).Encode(stats); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write goal stats")
		return
	}
}

func (s *Server) listRecentPoses(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit, err := limitParam(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
		return
	}

	poses, err := s.db.RecentPoses(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve poses: %v", err))
		return
	}
	if poses == nil {
		poses = []db.PoseRow{}
	}

	if err := json.NewEncoder(w).Encode(poses); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write poses")
		return
	}
}

// showConfig reports the effective planner settings with defaults already
// applied, which is what an operator debugging tolerance trouble wants to
// see.
func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	missions := make([]map[string]interface{}, 0, len(s.cfg.Missions))
	for _, m := range s.cfg.Missions {
		missions = append(missions, map[string]interface{}{
			"name":  m.Name,
			"goals": len(m.Goals),
		})
	}

	out := map[string]interface{}{
		"planner": map[string]interface{}{
			"distance_tolerance_m": s.cfg.Planner.GetDistanceTolerance(),
			"angle_tolerance_rad":  s.cfg.Planner.GetAngleTolerance(),
			"goal_countdown_ticks": s.cfg.Planner.GetCountdownTicks(),
			"tick_interval":        s.cfg.Planner.GetTickInterval().String(),
			"frame_id":             s.cfg.Planner.GetFrameID(),
			"retry_aborted":        s.cfg.Planner.GetRetryAborted(),
			"mission_retries":      s.cfg.Planner.GetMissionRetries(),
		},
		"link":     s.cfg.Link,
		"missions": missions,
	}

	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write config")
		return
	}
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := json.NewEncoder(w).Encode(version.Get()); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write version")
		return
	}
}

// publishGoalHandler lets an operator push one named goal to the motion
// controller outside the normal sequence. It does not touch the plan's
// state; the sequencer keeps judging arrival against its own active goal.
func (s *Server) publishGoalHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	missionName := r.FormValue("mission")
	goalName := r.FormValue("goal")
	if missionName == "" || goalName == "" {
		http.Error(w, "Missing 'mission' or 'goal' parameter", http.StatusBadRequest)
		return
	}

	goal, ok := s.findGoal(missionName, goalName)
	if !ok {
		http.Error(w, "Unknown mission or goal", http.StatusNotFound)
		return
	}

	if err := s.pub.Publish(missionName, goal); err != nil {
		http.Error(w, "Failed to publish goal", http.StatusInternalServerError)
		return
	}
	monitoring.Logf("operator published goal %q of mission %q", goalName, missionName)
	fmt.Fprintf(w, "Published goal %q of mission %q", goalName, missionName)
}

func (s *Server) findGoal(missionName, goalName string) (mission.Goal, bool) {
	for _, m := range s.plan.Missions() {
		if m.Name != missionName {
			continue
		}
		for _, g := range m.Goals {
			if g.Name == goalName {
				return g, true
			}
		}
	}
	return mission.Goal{}, false
}
