package main

import (
	"fmt"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/wisnode/pkg/dutycycle"
	"github.com/itohio/wisnode/pkg/port"
	"github.com/itohio/wisnode/pkg/sensor"
)

// UpdateWidgetOnMainThread schedules a widget update function to run on the main Fyne thread.
// Fyne widgets cannot be updated directly from goroutines.
func UpdateWidgetOnMainThread(callback func()) {
	if callback == nil {
		return
	}
	fyne.Do(callback)
}

// statusLabels show the controller state and the last frame.
type statusLabels struct {
	mode    *widget.Label
	task    *widget.Label
	cycle   *widget.Label
	period  *widget.Label
	power   *widget.Label
	counts  *widget.Label
	frame   *widget.Label
	decoded *widget.Label
}

func createStatusPanel(state *appState) fyne.CanvasObject {
	s := &state.status
	s.mode = widget.NewLabel("mode: -")
	s.task = widget.NewLabel("task: -")
	s.cycle = widget.NewLabel("cycle: -")
	s.period = widget.NewLabel("period: -")
	s.power = widget.NewLabel("sensors: off")
	s.counts = widget.NewLabel("sent 0 / failed 0 / skipped 0")
	s.frame = widget.NewLabel("no frame yet")
	s.frame.TextStyle = fyne.TextStyle{Monospace: true}
	s.decoded = widget.NewLabel("")
	s.decoded.Wrapping = fyne.TextWrapWord

	return container.NewVBox(
		container.NewHBox(s.mode, s.task, s.cycle, s.period, s.power, s.counts),
		widget.NewSeparator(),
		s.frame,
		s.decoded,
	)
}

// updateState refreshes the state labels.
func (s *statusLabels) updateState(st dutycycle.State, sensorsOn bool) {
	if s.mode == nil {
		return
	}
	s.mode.SetText("mode: " + st.Mode.String())
	s.task.SetText("task: " + st.Task.String())
	s.cycle.SetText(fmt.Sprintf("cycle: %d", st.Cycle))
	s.period.SetText("period: " + st.Period.String())
	if sensorsOn {
		s.power.SetText("sensors: on")
	} else {
		s.power.SetText("sensors: off")
	}
	s.counts.SetText(fmt.Sprintf("sent %d / failed %d / skipped %d", st.Sent, st.Failed, st.Skipped))
}

// update shows the outcome of a cycle.
func (s *statusLabels) update(st dutycycle.State, r dutycycle.Report) {
	if s.mode == nil {
		return
	}
	s.updateState(st, true)
	s.frame.SetText(describeReport(r))
	switch {
	case r.Skipped:
		s.decoded.SetText("")
	case r.Frame.Len() > 0:
		s.decoded.SetText("decoded: " + describeFrame(r.Frame))
	default:
		s.decoded.SetText("read: " + describeSnapshot(r.Snapshot))
	}
}

// describeReport is a one line summary of a cycle.
func describeReport(r dutycycle.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", r.Time.Format("15:04:05"), r.Mode)
	if r.Mode != dutycycle.Normal {
		fmt.Fprintf(&b, " #%d", r.Cycle)
	}
	switch {
	case r.Skipped:
		b.WriteString(" skipped, not joined")
		return b.String()
	case r.Err != nil:
		fmt.Fprintf(&b, " failed: %v", r.Err)
	default:
		fmt.Fprintf(&b, " sent %s", r.Frame)
	}
	if r.Triggered {
		b.WriteString(" TRIGGER")
	}
	return b.String()
}

// describeSnapshot lists every valid reading.
func describeSnapshot(s sensor.Snapshot) string {
	var parts []string
	if s.Battery.Valid {
		parts = append(parts, fmt.Sprintf("battery %.0f mV (%.0f%%)", s.Battery.Value, sensor.BatterySoC(s.Battery.Value)))
	}
	if s.Temperature.Valid {
		parts = append(parts, fmt.Sprintf("temperature %.2f °C", s.Temperature.Value))
	}
	if s.Humidity.Valid {
		parts = append(parts, fmt.Sprintf("humidity %.1f %%RH", s.Humidity.Value))
	}
	if s.Pressure.Valid {
		parts = append(parts, fmt.Sprintf("pressure %d Pa", s.Pressure.Value))
	}
	if s.GasResistance.Valid {
		parts = append(parts, fmt.Sprintf("gas %d Ω", s.GasResistance.Value))
	}
	if s.Location.Valid {
		parts = append(parts, fmt.Sprintf("location %.4f,%.4f", s.Location.Latitude, s.Location.Longitude))
	}
	if s.Turbidity.Valid {
		parts = append(parts, fmt.Sprintf("turbidity %d NTU", s.Turbidity.Value))
	}
	if len(parts) == 0 {
		return "no valid readings"
	}
	return strings.Join(parts, ", ")
}

// describeFrame decodes a frame the way the network side would.
func describeFrame(f port.Frame) string {
	snap, err := port.Decode(f)
	if err != nil {
		return err.Error()
	}
	return describeSnapshot(snap)
}
