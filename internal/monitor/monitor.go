// Package monitor serves debug visualizations of recorded trajectories:
// an interactive HTML chart and a PNG export suitable for reports. It is
// read-only over the mission log and mounts alongside the introspection
// API.
package monitor

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"net/http"
	"strconv"
	"time"

	"github.com/ferrule-robotics/missiond/internal/db"
	"github.com/ferrule-robotics/missiond/internal/mission"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// trajectoryColor draws the recorded path; goalColors mark each mission's
// goals. goalPlotColors mirrors goalColors for the PNG renderer.
const trajectoryColor = "#26828e"

var goalColors = []string{"#ff5252", "#ffb300", "#40c4ff", "#69f0ae", "#e040fb", "#fdd835"}

var goalPlotColors = []color.RGBA{
	{R: 0xff, G: 0x52, B: 0x52, A: 0xff},
	{R: 0xff, G: 0xb3, B: 0x00, A: 0xff},
	{R: 0x40, G: 0xc4, B: 0xff, A: 0xff},
	{R: 0x69, G: 0xf0, B: 0xae, A: 0xff},
	{R: 0xe0, G: 0x40, B: 0xfb, A: 0xff},
	{R: 0xfd, G: 0xd8, B: 0x35, A: 0xff},
}

var errBadRunParam = errors.New("invalid 'run' parameter")

// Monitor renders trajectory visualizations from the mission log.
type Monitor struct {
	db   *db.DB
	plan *mission.Plan
}

// NewMonitor creates a monitor backed by the given store. The plan supplies
// goal markers; a nil plan renders the trajectory alone.
func NewMonitor(store *db.DB, plan *mission.Plan) *Monitor {
	return &Monitor{db: store, plan: plan}
}

// AttachRoutes mounts the visualization endpoints on mux.
func (m *Monitor) AttachRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/monitor/trajectory", m.handleTrajectoryChart)
	mux.HandleFunc("/monitor/trajectory.png", m.handleTrajectoryPlot)
}

func (m *Monitor) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// trajectoryPoses selects the poses to draw. A `run` parameter scopes to one
// run; otherwise `start`/`end` (unix seconds) bound a window that defaults
// to the last hour. The returned label describes the selection for chart
// subtitles.
func (m *Monitor) trajectoryPoses(r *http.Request) ([]db.PoseRow, string, error) {
	if runParam := r.URL.Query().Get("run"); runParam != "" {
		runID, err := strconv.ParseInt(runParam, 10, 64)
		if err != nil || runID < 1 {
			return nil, "", errBadRunParam
		}
		poses, err := m.db.PosesForRun(runID)
		if err != nil {
			return nil, "", err
		}
		return poses, fmt.Sprintf("run=%d", runID), nil
	}

	var start, end time.Time
	if s := r.URL.Query().Get("start"); s != "" {
		if parsed, err := strconv.ParseInt(s, 10, 64); err == nil {
			start = time.Unix(parsed, 0)
		}
	}
	if e := r.URL.Query().Get("end"); e != "" {
		if parsed, err := strconv.ParseInt(e, 10, 64); err == nil {
			end = time.Unix(parsed, 0)
		}
	}
	if end.IsZero() {
		end = time.Now()
	}
	if start.IsZero() {
		start = end.Add(-time.Hour)
	}
	poses, err := m.db.PosesBetween(start, end)
	if err != nil {
		return nil, "", err
	}
	label := fmt.Sprintf("window=%s..%s",
		start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
	return poses, label, nil
}

func (m *Monitor) missions() []mission.Mission {
	if m.plan == nil {
		return nil
	}
	return m.plan.Missions()
}
