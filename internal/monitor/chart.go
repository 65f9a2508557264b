package monitor

import (
	"bytes"
	"fmt"
	"math"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// handleTrajectoryChart renders the recorded trajectory as an interactive
// chart, with one marker series per mission so the path can be read against
// the goals it was chasing.
func (m *Monitor) handleTrajectoryChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		m.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	poses, label, err := m.trajectoryPoses(r)
	if err != nil {
		status := http.StatusInternalServerError
		if err == errBadRunParam {
			status = http.StatusBadRequest
		}
		m.writeJSONError(w, status, err.Error())
		return
	}
	if len(poses) == 0 {
		m.writeJSONError(w, http.StatusNotFound, "no recorded poses in window")
		return
	}

	missions := m.missions()

	traj := make([]opts.LineData, 0, len(poses))
	maxAbs := 0.0
	for _, p := range poses {
		if math.Abs(p.X) > maxAbs {
			maxAbs = math.Abs(p.X)
		}
		if math.Abs(p.Y) > maxAbs {
			maxAbs = math.Abs(p.Y)
		}
		traj = append(traj, opts.LineData{Value: []interface{}{p.X, p.Y}})
	}
	for _, ms := range missions {
		for _, g := range ms.Goals {
			if math.Abs(g.Pose.X) > maxAbs {
				maxAbs = math.Abs(g.Pose.X)
			}
			if math.Abs(g.Pose.Y) > maxAbs {
				maxAbs = math.Abs(g.Pose.Y)
			}
		}
	}
	pad := maxAbs * 1.05
	if pad == 0 {
		pad = 1.0
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Mission Trajectory", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Recorded Trajectory", Subtitle: fmt.Sprintf("poses=%d missions=%d %s", len(poses), len(missions), label)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Min: -pad, Max: pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Min: -pad, Max: pad, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
	)
	line.AddSeries("trajectory", traj, charts.WithItemStyleOpts(opts.ItemStyle{Color: trajectoryColor}))

	markers := charts.NewScatter()
	for i, ms := range missions {
		pts := make([]opts.ScatterData, 0, len(ms.Goals))
		for _, g := range ms.Goals {
			pts = append(pts, opts.ScatterData{Value: []interface{}{g.Pose.X, g.Pose.Y}, Name: g.Name})
		}
		markers.AddSeries(ms.Name, pts,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 14}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: goalColors[i%len(goalColors)]}))
	}
	line.Overlap(markers)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		m.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
