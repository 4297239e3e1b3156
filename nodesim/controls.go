package main

import (
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/wisnode/pkg/radio"
	"github.com/itohio/wisnode/pkg/sensor"
)

// createControls creates sliders for the simulated sensors and the radio
// link toggle. Changes apply to the running node immediately and become
// the start values of the next one.
func createControls(state *appState) fyne.CanvasObject {
	m := &state.cfg.Mock

	turbidity := newSlider("Turbidity sensor", "mV", 0, 3300, 10, float64(m.TurbidityMV), func(v float64) {
		m.TurbidityMV = float32(v)
		if n := state.node; n != nil {
			n.Sensors.Turbidity.Set(m.TurbidityMV)
		}
	}, func(v float64) string {
		return fmt.Sprintf("%.0f mV ≈ %.0f NTU", v, sensor.TurbidityNTU(float32(v)))
	})

	battery := newSlider("Battery", "mV", 3000, 4300, 10, float64(m.BatteryMV), func(v float64) {
		m.BatteryMV = float32(v)
		if n := state.node; n != nil {
			n.Sensors.Battery.Set(m.BatteryMV)
		}
	}, func(v float64) string {
		return fmt.Sprintf("%.0f mV (%.0f%%)", v, sensor.BatterySoC(float32(v)))
	})

	temperature := newSlider("Temperature", "°C", -20, 60, 0.5, float64(m.Temperature), func(v float64) {
		m.Temperature = float32(v)
		applyEnvironment(state)
	}, nil)

	humidity := newSlider("Humidity", "%RH", 0, 100, 1, float64(m.Humidity), func(v float64) {
		m.Humidity = float32(v)
		applyEnvironment(state)
	}, nil)

	state.linkCheck = widget.NewCheck("Network joined", func(on bool) {
		if n := state.node; n != nil {
			if mock, ok := n.Link.(*radio.Mock); ok {
				mock.SetConnected(on)
			}
		}
	})
	state.linkCheck.SetChecked(true)
	state.linkCheck.Disable()

	return container.NewVBox(
		widget.NewLabelWithStyle("Simulated sensors", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		turbidity,
		battery,
		temperature,
		humidity,
		widget.NewSeparator(),
		state.linkCheck,
	)
}

// newSlider creates a labelled slider. format may be nil.
func newSlider(name, unit string, lo, hi, step, value float64, changed func(float64), format func(float64) string) fyne.CanvasObject {
	if format == nil {
		format = func(v float64) string { return fmt.Sprintf("%.1f %s", v, unit) }
	}
	label := widget.NewLabel(name + ": " + format(value))

	s := widget.NewSlider(lo, hi)
	s.Step = step
	s.SetValue(value)
	s.OnChanged = func(v float64) {
		label.SetText(name + ": " + format(v))
		changed(v)
	}
	return container.NewVBox(label, s)
}

// applyControls pushes the current slider values into a freshly started node.
func applyControls(state *appState) {
	n := state.node
	if n == nil {
		return
	}
	m := state.cfg.Mock
	n.Sensors.Turbidity.Set(m.TurbidityMV)
	n.Sensors.Battery.Set(m.BatteryMV)
	applyEnvironment(state)

	if mock, ok := n.Link.(*radio.Mock); ok && state.linkCheck != nil {
		mock.SetConnected(state.linkCheck.Checked)
	}
}

func applyEnvironment(state *appState) {
	n := state.node
	if n == nil {
		return
	}
	m := state.cfg.Mock
	n.Sensors.SetEnvironment(m.Temperature, m.Humidity, m.Pressure, m.GasResistance)
}
