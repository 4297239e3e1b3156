package history

import (
	"sync"
	"time"

	"github.com/itohio/wisnode/pkg/dutycycle"
)

var _ Recorder = (*History)(nil)

// DefaultWindow keeps a day of cycles.
const DefaultWindow = 24 * time.Hour

// Point is one duty cycle reduced to what the scope plots.
type Point struct {
	Time        time.Time
	Mode        dutycycle.Mode
	Cycle       int
	Turbidity   float64 // NTU, valid when HasTurbidity
	Battery     float64 // mV, 0 when not read
	Temperature float64 // °C, 0 when not read

	HasTurbidity bool
	Triggered    bool
	Sent         bool
	Skipped      bool
}

// Episode is a run of Active mode cycles started by a turbidity trigger.
type Episode struct {
	StartIndex int // point that triggered the episode
	EndIndex   int // last Active point seen so far
	Start      time.Time
	End        time.Time
	PeakNTU    float64
	Cycles     int  // Active cycles recorded
	Open       bool // no Normal cycle seen since the trigger
}

// Recorder keeps a windowed history of duty cycle reports.
type Recorder interface {
	Process(input <-chan dutycycle.Report)
	Record(r dutycycle.Report)
	Points() []Point                                   // oldest first
	Rates() []float64                                  // NTU per minute, rates[i] spans points[i] to points[i+1]
	Episodes() []Episode                               // trigger episodes inside the window
	OnUpdate(func(points []Point, episodes []Episode)) // called after every recorded report
}

// History implements Recorder. Points are dropped by timestamp once they
// fall out of the window; rates and episode indices follow the points.
type History struct {
	mu       sync.RWMutex
	window   time.Duration
	points   []Point
	rates    []float64
	episodes []Episode
	shutdown bool // input channel closed, no more callbacks

	cbMu      sync.RWMutex
	callbacks []func(points []Point, episodes []Episode)
}

// New creates a History keeping reports for window. A non-positive window
// uses DefaultWindow.
func New(window time.Duration) *History {
	if window <= 0 {
		window = DefaultWindow
	}
	return &History{window: window}
}

// Window returns the retention window.
func (h *History) Window() time.Duration { return h.window }

// Process records reports until input closes, then stops notifying.
func (h *History) Process(input <-chan dutycycle.Report) {
	for r := range input {
		h.Record(r)
	}
	h.mu.Lock()
	h.shutdown = true
	h.mu.Unlock()
}

// Record adds one report. It is safe to pass as a dutycycle OnCycle callback.
func (h *History) Record(r dutycycle.Report) {
	p := pointFrom(r)

	h.mu.Lock()
	h.points = append(h.points, p)
	h.trim(p.Time)
	h.updateRates()
	h.updateEpisodes()
	notify := !h.shutdown
	h.mu.Unlock()

	if notify {
		h.notifyCallbacks()
	}
}

func pointFrom(r dutycycle.Report) Point {
	s := r.Snapshot
	p := Point{
		Time:         r.Time,
		Mode:         r.Mode,
		Cycle:        r.Cycle,
		HasTurbidity: s.Turbidity.Valid,
		Triggered:    r.Triggered,
		Sent:         r.Sent(),
		Skipped:      r.Skipped,
	}
	if s.Turbidity.Valid {
		p.Turbidity = float64(s.Turbidity.Value)
	}
	if s.Battery.Valid {
		p.Battery = float64(s.Battery.Value)
	}
	if s.Temperature.Valid {
		p.Temperature = float64(s.Temperature.Value)
	}
	return p
}

// trim drops points older than the window ending at now.
func (h *History) trim(now time.Time) {
	cutoff := now.Add(-h.window)
	n := 0
	for n < len(h.points) && !h.points[n].Time.After(cutoff) {
		n++
	}
	if n == 0 {
		return
	}

	h.points = h.points[n:]
	if n <= len(h.rates) {
		h.rates = h.rates[n:]
	} else {
		h.rates = h.rates[:0]
	}

	kept := h.episodes[:0]
	for _, e := range h.episodes {
		e.StartIndex -= n
		e.EndIndex -= n
		if e.EndIndex < 0 {
			continue
		}
		if e.StartIndex < 0 {
			e.StartIndex = 0
			e.Start = h.points[0].Time
		}
		kept = append(kept, e)
	}
	h.episodes = kept
}

// updateRates appends the rate between the two newest points. Points
// without turbidity, or with no elapsed time, get a zero rate so that
// rates stay aligned with point pairs.
func (h *History) updateRates() {
	if len(h.points) < 2 {
		return
	}
	prev := h.points[len(h.points)-2]
	curr := h.points[len(h.points)-1]

	var rate float64
	dt := curr.Time.Sub(prev.Time).Minutes()
	if dt > 0 && prev.HasTurbidity && curr.HasTurbidity {
		rate = (curr.Turbidity - prev.Turbidity) / dt
	}
	h.rates = append(h.rates, rate)
	if len(h.rates) > len(h.points)-1 {
		h.rates = h.rates[1:]
	}
}

// updateEpisodes opens an episode on a triggering point, extends the open
// one on Active points and closes it on the first Normal point.
func (h *History) updateEpisodes() {
	idx := len(h.points) - 1
	p := h.points[idx]

	var open *Episode
	if n := len(h.episodes); n > 0 && h.episodes[n-1].Open {
		open = &h.episodes[n-1]
	}

	switch {
	case p.Triggered:
		if open != nil {
			open.Open = false
		}
		h.episodes = append(h.episodes, Episode{
			StartIndex: idx,
			EndIndex:   idx,
			Start:      p.Time,
			End:        p.Time,
			PeakNTU:    p.Turbidity,
			Open:       true,
		})
	case open == nil:
	case p.Mode == dutycycle.Normal:
		open.Open = false
	default:
		open.EndIndex = idx
		open.End = p.Time
		open.Cycles++
		if p.HasTurbidity && p.Turbidity > open.PeakNTU {
			open.PeakNTU = p.Turbidity
		}
	}
}

// Points returns a copy of the recorded points.
func (h *History) Points() []Point {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Point(nil), h.points...)
}

// Rates returns a copy of the turbidity rates of change.
func (h *History) Rates() []float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]float64(nil), h.rates...)
}

// Episodes returns a copy of the trigger episodes.
func (h *History) Episodes() []Episode {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Episode(nil), h.episodes...)
}

// Latest returns the newest point.
func (h *History) Latest() (Point, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.points) == 0 {
		return Point{}, false
	}
	return h.points[len(h.points)-1], true
}

// OnUpdate registers a callback receiving copies of the points and episodes.
// It runs on the recording goroutine and should return quickly.
func (h *History) OnUpdate(callback func(points []Point, episodes []Episode)) {
	h.cbMu.Lock()
	defer h.cbMu.Unlock()
	h.callbacks = append(h.callbacks, callback)
}

// ResetShutdown re-enables callbacks after Process returned.
func (h *History) ResetShutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.shutdown = false
}

// Clear drops all recorded points.
func (h *History) Clear() {
	h.mu.Lock()
	h.points = nil
	h.rates = nil
	h.episodes = nil
	h.mu.Unlock()
}

func (h *History) notifyCallbacks() {
	points := h.Points()
	episodes := h.Episodes()

	h.cbMu.RLock()
	callbacks := append([]func([]Point, []Episode){}, h.callbacks...)
	h.cbMu.RUnlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(points, episodes)
		}
	}
}
