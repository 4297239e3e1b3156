package scope

import (
	"strconv"
	"time"

	"github.com/itohio/wisnode/pkg/history"
)

// axes maps time and NTU onto a plot rectangle.
type axes struct {
	yMin, yMax float64
	xMin, xMax time.Time
}

// autoScale fits the turbidity trace and the threshold with a 10% margin.
// The time axis spans at least MinWindow ending at the newest point, or at
// now when there is nothing to plot.
func autoScale(points []history.Point, threshold float64, now time.Time) axes {
	a := axes{yMin: 0, yMax: threshold}
	for _, p := range points {
		if !p.HasTurbidity {
			continue
		}
		if p.Turbidity > a.yMax {
			a.yMax = p.Turbidity
		}
	}
	if a.yMax <= a.yMin {
		a.yMax = a.yMin + 1
	}
	a.yMax += (a.yMax - a.yMin) * 0.1

	a.xMax = now
	if len(points) > 0 {
		a.xMin = points[0].Time
		a.xMax = points[len(points)-1].Time
	}
	if a.xMax.Sub(a.xMin) < MinWindow {
		a.xMin = a.xMax.Add(-MinWindow)
	}
	return a
}

// x returns the horizontal position of t inside [left, left+width].
func (a axes) x(t time.Time, left, width float32) float32 {
	span := a.xMax.Sub(a.xMin).Seconds()
	if span <= 0 {
		return left
	}
	return left + float32(t.Sub(a.xMin).Seconds()/span)*width
}

// y returns the vertical position of v inside [top, top+height], larger
// values higher.
func (a axes) y(v float64, top, height float32) float32 {
	span := a.yMax - a.yMin
	if span <= 0 {
		return top + height
	}
	return top + height - float32((v-a.yMin)/span)*height
}

func formatNTU(v float64) string {
	return strconv.FormatFloat(v, 'f', 0, 64) + " NTU"
}

// formatAgo labels the time axis relative to the newest point.
func formatAgo(d time.Duration) string {
	if d <= 0 {
		return "now"
	}
	d = d.Round(time.Minute)
	if d < time.Hour {
		return "-" + strconv.Itoa(int(d.Minutes())) + "m"
	}
	return "-" + strconv.FormatFloat(d.Hours(), 'f', 1, 64) + "h"
}
