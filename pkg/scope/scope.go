package scope

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/wisnode/pkg/history"
)

// MinWindow is the narrowest time span the scope shows.
const MinWindow = 10 * time.Minute

// ScopeWidget plots turbidity history with the trigger threshold and the
// Active mode episodes.
type ScopeWidget struct {
	widget.BaseWidget

	mu        sync.RWMutex
	episodes  []history.Episode
	threshold float64 // NTU

	display []history.Point // downsampled points, reused between updates
	axes    axes

	maxDisplayPoints int
}

// New creates a scope drawing threshold as the trigger line.
func New(threshold uint32) *ScopeWidget {
	s := &ScopeWidget{
		threshold:        float64(threshold),
		display:          make([]history.Point, 0, 500),
		maxDisplayPoints: 500,
	}
	s.axes = autoScale(nil, s.threshold, time.Now())
	s.ExtendBaseWidget(s)
	s.Refresh()
	return s
}

// SetThreshold moves the trigger line.
func (s *ScopeWidget) SetThreshold(ntu uint32) {
	s.mu.Lock()
	s.threshold = float64(ntu)
	s.axes = autoScale(s.display, s.threshold, time.Now())
	s.mu.Unlock()
	s.Refresh()
}

// UpdateData replaces the plotted history. Call it through fyne.Do from
// history callbacks.
func (s *ScopeWidget) UpdateData(points []history.Point, episodes []history.Episode) {
	s.mu.Lock()
	s.display = history.Downsample(s.display, points, s.maxDisplayPoints)
	s.episodes = episodes
	s.axes = autoScale(s.display, s.threshold, time.Now())
	s.mu.Unlock()

	s.Refresh()
}

// CreateRenderer creates the widget renderer.
func (s *ScopeWidget) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255})
	return &scopeRenderer{
		scope:   s,
		bg:      bg,
		objects: []fyne.CanvasObject{bg},
	}
}
