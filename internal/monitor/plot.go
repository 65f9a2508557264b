package monitor

import (
	"fmt"
	"image/color"
	"math"
	"net/http"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// handleTrajectoryPlot renders the same trajectory as a PNG for
// report-style export.
func (m *Monitor) handleTrajectoryPlot(w http.ResponseWriter, r *http.Request) {
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

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Recorded Trajectory (%s)", label)
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"

	pts := make(plotter.XYs, 0, len(poses))
	maxAbs := 0.0
	for _, pose := range poses {
		pts = append(pts, plotter.XY{X: pose.X, Y: pose.Y})
		maxAbs = maxAbsXY(maxAbs, pose.X, pose.Y)
	}

	trajLine, err := plotter.NewLine(pts)
	if err != nil {
		m.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("trajectory line: %v", err))
		return
	}
	trajLine.Color = color.RGBA{R: 0x26, G: 0x82, B: 0x8e, A: 0xff}
	trajLine.Width = vg.Points(1)
	p.Add(trajLine)
	p.Legend.Add("trajectory", trajLine)

	for i, ms := range missions {
		goalPts := make(plotter.XYs, 0, len(ms.Goals))
		for _, g := range ms.Goals {
			goalPts = append(goalPts, plotter.XY{X: g.Pose.X, Y: g.Pose.Y})
			maxAbs = maxAbsXY(maxAbs, g.Pose.X, g.Pose.Y)
		}
		goalScatter, err := plotter.NewScatter(goalPts)
		if err != nil {
			m.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("goal markers: %v", err))
			return
		}
		goalScatter.GlyphStyle.Color = goalPlotColors[i%len(goalPlotColors)]
		goalScatter.GlyphStyle.Radius = vg.Points(4)
		p.Add(goalScatter)
		p.Legend.Add(ms.Name, goalScatter)
	}

	pad := maxAbs * 1.05
	if pad == 0 {
		pad = 1.0
	}
	p.X.Min, p.X.Max = -pad, pad
	p.Y.Min, p.Y.Max = -pad, pad

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	wt, err := p.WriterTo(8*vg.Inch, 8*vg.Inch, "png")
	if err != nil {
		m.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = wt.WriteTo(w)
}

func maxAbsXY(cur, x, y float64) float64 {
	if ax := math.Abs(x); ax > cur {
		cur = ax
	}
	if ay := math.Abs(y); ay > cur {
		cur = ay
	}
	return cur
}
