package hostsim

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/touchlink/internal/httputil"
	"github.com/banshee-data/touchlink/internal/joints"
)

// DefaultTraceLen is how many frames of joint heights are kept.
const DefaultTraceLen = 900

// Trace keeps the most recent joint heights per joint name.
type Trace struct {
	mu     sync.Mutex
	max    int
	frame  uint64
	series map[string]plotter.XYs
}

// NewTrace returns a trace holding up to max frames per joint.
func NewTrace(max int) *Trace {
	if max <= 0 {
		max = DefaultTraceLen
	}
	return &Trace{max: max, series: make(map[string]plotter.XYs)}
}

// Record appends the tracked joints of snap as the next frame. Joints that
// have never been tracked are skipped.
func (t *Trace) Record(snap *joints.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frame++
	snap.ForEachIndexed(func(_ int, j *joints.Joint) bool {
		p := j.Pose()
		if p.State != joints.Tracked {
			return true
		}
		xys := append(t.series[j.Name], plotter.XY{X: float64(t.frame), Y: p.Position.Y})
		if len(xys) > t.max {
			xys = xys[len(xys)-t.max:]
		}
		t.series[j.Name] = xys
		return true
	})
}

// Names returns the recorded joint names, sorted.
func (t *Trace) Names() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	names := make([]string, 0, len(t.series))
	for n := range t.series {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// WritePNG renders the trace as a line chart.
func (t *Trace) WritePNG(w io.Writer) error {
	p := plot.New()
	p.Title.Text = "Joint height"
	p.X.Label.Text = "frame"
	p.Y.Label.Text = "Y (m)"

	var lines []interface{}
	t.mu.Lock()
	for _, name := range sortedKeys(t.series) {
		xys := make(plotter.XYs, len(t.series[name]))
		copy(xys, t.series[name])
		lines = append(lines, name, xys)
	}
	t.mu.Unlock()

	if len(lines) > 0 {
		if err := plotutil.AddLines(p, lines...); err != nil {
			return fmt.Errorf("failed to add trace lines: %w", err)
		}
	}

	wt, err := p.WriterTo(8*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("failed to create plot writer: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

func sortedKeys(m map[string]plotter.XYs) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (l *Loop) handleTrace(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/png")
	if err := l.trace.WritePNG(w); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render trace: %v", err))
	}
}
