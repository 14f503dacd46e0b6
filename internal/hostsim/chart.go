package hostsim

import (
	"bytes"
	"fmt"
	"math"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/touchlink/internal/httputil"
	"github.com/banshee-data/touchlink/internal/joints"
)

// renderJointChart draws a top-down (X/Z) scatter of the snapshot's joints,
// one series per joint.
func renderJointChart(snap *joints.Snapshot) ([]byte, error) {
	maxAbs := 0.0
	scatter := charts.NewScatter()
	snap.ForEachIndexed(func(_ int, j *joints.Joint) bool {
		p := j.Pose()
		maxAbs = math.Max(maxAbs, math.Max(math.Abs(p.Position.X), math.Abs(p.Position.Z)))
		scatter.AddSeries(j.Name, []opts.ScatterData{{
			Name:  string(p.State),
			Value: []interface{}{p.Position.X, p.Position.Z, p.Position.Y},
		}}, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 12}))
		return true
	})

	pad := maxAbs * 1.2
	if pad == 0 {
		pad = 1.0
	}

	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "TouchLink joints", Theme: "dark", Width: "700px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: "Tracked joints (top-down)", Subtitle: fmt.Sprintf("snapshot=%s generation=%d joints=%d", snap.ID, snap.Generation, snap.Len())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Z (m)", NameLocation: "middle", NameGap: 30}),
	)

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (l *Loop) handleJointChart(w http.ResponseWriter, r *http.Request) {
	page, err := renderJointChart(l.device.TrackedJoints().Snapshot())
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}
