package scope

import (
	"image/color"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"

	"github.com/itohio/wisnode/pkg/dutycycle"
	"github.com/itohio/wisnode/pkg/history"
)

var (
	gridColor      = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	labelColor     = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	traceColor     = color.RGBA{R: 255, G: 165, B: 0, A: 255}
	activeColor    = color.RGBA{R: 100, G: 200, B: 255, A: 255}
	thresholdColor = color.RGBA{R: 220, G: 50, B: 50, A: 255}
	episodeColor   = color.RGBA{R: 0, G: 100, B: 200, A: 60}
	failColor      = color.RGBA{R: 220, G: 50, B: 50, A: 255}
)

// scopeRenderer renders the scope widget.
type scopeRenderer struct {
	scope *ScopeWidget

	bg      *canvas.Rectangle
	objects []fyne.CanvasObject

	lastSize fyne.Size
}

// MinSize returns the minimum size of the widget.
func (r *scopeRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 300)
}

// Layout arranges the widget components.
func (r *scopeRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)

	if r.lastSize != size {
		r.lastSize = size
		r.scope.BaseWidget.Refresh()
	}
}

// Refresh rebuilds all canvas objects from the current data.
func (r *scopeRenderer) Refresh() {
	r.scope.mu.RLock()
	points := r.scope.display
	episodes := r.scope.episodes
	threshold := r.scope.threshold
	a := r.scope.axes
	r.scope.mu.RUnlock()

	size := r.scope.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	r.objects = []fyne.CanvasObject{r.bg}

	const (
		marginLeft   = float32(70)
		marginRight  = float32(20)
		marginTop    = float32(20)
		marginBottom = float32(40)
	)
	plot := plotArea{
		x: marginLeft,
		y: marginTop,
		w: size.Width - marginLeft - marginRight,
		h: size.Height - marginTop - marginBottom,
	}

	r.drawEpisodes(plot, a, episodes)
	r.drawGrid(plot, a)
	r.drawThreshold(plot, a, threshold)
	r.drawTrace(plot, a, points)
	r.drawStatus(plot, points)
}

type plotArea struct {
	x, y, w, h float32
}

func (r *scopeRenderer) add(o fyne.CanvasObject) {
	r.objects = append(r.objects, o)
}

func (r *scopeRenderer) line(c color.Color, width float32, x1, y1, x2, y2 float32) {
	l := canvas.NewLine(c)
	l.Position1 = fyne.NewPos(x1, y1)
	l.Position2 = fyne.NewPos(x2, y2)
	l.StrokeWidth = width
	r.add(l)
}

func (r *scopeRenderer) text(s string, c color.Color, size float32, align fyne.TextAlign, x, y float32) {
	t := canvas.NewText(s, c)
	t.TextSize = size
	t.Alignment = align
	t.Move(fyne.NewPos(x, y))
	r.add(t)
}

func (r *scopeRenderer) drawGrid(p plotArea, a axes) {
	const rows, cols = 6, 8

	for i := 0; i < rows+1; i++ {
		y := p.y + float32(i)*p.h/rows
		r.line(gridColor, 1, p.x, y, p.x+p.w, y)

		v := a.yMax - float64(i)*(a.yMax-a.yMin)/rows
		r.text(formatNTU(v), labelColor, 10, fyne.TextAlignTrailing, p.x-5, y-6)
	}

	span := a.xMax.Sub(a.xMin)
	for i := 0; i < cols+1; i++ {
		x := p.x + float32(i)*p.w/cols
		r.line(gridColor, 1, x, p.y, x, p.y+p.h)

		ago := span - time.Duration(float64(span)*float64(i)/cols)
		r.text(formatAgo(ago), labelColor, 10, fyne.TextAlignCenter, x-20, p.y+p.h+5)
	}
}

// drawEpisodes shades every Active mode episode.
func (r *scopeRenderer) drawEpisodes(p plotArea, a axes, episodes []history.Episode) {
	for _, e := range episodes {
		x1 := clamp(a.x(e.Start, p.x, p.w), p.x, p.x+p.w)
		x2 := clamp(a.x(e.End, p.x, p.w), p.x, p.x+p.w)
		if x2-x1 < 2 {
			x2 = x1 + 2
		}
		rect := canvas.NewRectangle(episodeColor)
		rect.Move(fyne.NewPos(x1, p.y))
		rect.Resize(fyne.NewSize(x2-x1, p.h))
		r.add(rect)
	}
}

func (r *scopeRenderer) drawThreshold(p plotArea, a axes, threshold float64) {
	if threshold <= 0 {
		return
	}
	y := a.y(threshold, p.y, p.h)
	r.line(thresholdColor, 1, p.x, y, p.x+p.w, y)
	r.text("trigger "+formatNTU(threshold), thresholdColor, 10, fyne.TextAlignLeading, p.x+5, y-14)
}

// drawTrace connects consecutive turbidity readings. Segments inside Active
// mode are drawn thicker and blue; cycles that failed to send get a red dot.
func (r *scopeRenderer) drawTrace(p plotArea, a axes, points []history.Point) {
	var prev *history.Point
	for i := range points {
		pt := &points[i]
		if !pt.HasTurbidity {
			prev = nil
			continue
		}
		x := a.x(pt.Time, p.x, p.w)
		y := a.y(pt.Turbidity, p.y, p.h)

		if prev != nil {
			c, w := color.Color(traceColor), float32(1.5)
			if pt.Mode != dutycycle.Normal {
				c, w = activeColor, 2.5
			}
			r.line(c, w, a.x(prev.Time, p.x, p.w), a.y(prev.Turbidity, p.y, p.h), x, y)
		}
		if !pt.Sent {
			dot := canvas.NewCircle(failColor)
			dot.Move(fyne.NewPos(x-3, y-3))
			dot.Resize(fyne.NewSize(6, 6))
			r.add(dot)
		}
		prev = pt
	}
}

func (r *scopeRenderer) drawStatus(p plotArea, points []history.Point) {
	if len(points) == 0 {
		r.text("no cycles yet", labelColor, 11, fyne.TextAlignLeading, p.x+10, p.y+10)
		return
	}
	last := points[len(points)-1]
	status := last.Mode.String()
	if last.HasTurbidity {
		status = formatNTU(last.Turbidity) + "  " + status
	}
	r.text(status, color.RGBA{R: 200, G: 200, B: 200, A: 255}, 11, fyne.TextAlignLeading, p.x+10, p.y+10)
}

func clamp(v, lo, hi float32) float32 {
	return max(lo, min(v, hi))
}

// Objects returns all canvas objects for rendering.
func (r *scopeRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *scopeRenderer) Destroy() {}
