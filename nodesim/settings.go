package main

import (
	"fmt"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/wisnode/pkg/config"
	"github.com/itohio/wisnode/pkg/port"
	"github.com/itohio/wisnode/pkg/radio/abp"
	"github.com/itohio/wisnode/pkg/radio/host"
)

// showSettingsDialog displays a settings dialog with tabs for all configuration options.
func showSettingsDialog(state *appState) {
	tabs := container.NewAppTabs(
		createNodeTab(state),
		createScheduleTab(state),
		createRadioTab(state),
		createMockTab(state),
	)

	content := container.NewBorder(nil, nil, nil, nil, tabs)
	content.Resize(fyne.NewSize(600, 500))

	d := dialog.NewCustom("Settings", "Close", content, state.window)
	d.Resize(fyne.NewSize(600, 500))
	d.Show()
}

// saveConfig validates the edited copy, then replaces and saves the
// configuration. A running node keeps its settings until restarted.
func saveConfig(state *appState, edited *config.Config) {
	if err := edited.Validate(); err != nil {
		dialog.ShowError(err, state.window)
		return
	}
	*state.cfg = *edited
	if err := state.cfg.Save(state.cfgPath); err != nil {
		dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
		return
	}
	state.scopeWidget.SetThreshold(state.cfg.Trigger.TurbidityNTU)
	if state.node != nil {
		dialog.ShowInformation("Settings", "Saved. Restart the node to apply.", state.window)
	}
}

// createNodeTab selects the FPort and confirmation mode.
func createNodeTab(state *appState) *container.TabItem {
	defs := port.All()
	options := make([]string, len(defs))
	byOption := make(map[string]uint8, len(defs))
	current := ""
	for i, d := range defs {
		options[i] = d.String()
		byOption[options[i]] = d.Number
		if d.Number == state.cfg.Node.Port {
			current = options[i]
		}
	}

	portSelect := widget.NewSelect(options, nil)
	portSelect.SetSelected(current)

	confirmedCheck := widget.NewCheck("", nil)
	confirmedCheck.SetChecked(state.cfg.Node.Confirmed)

	rak1901Check := widget.NewCheck("", nil)
	rak1901Check.SetChecked(state.cfg.Sensors.UseRAK1901)
	rak1906Check := widget.NewCheck("", nil)
	rak1906Check.SetChecked(state.cfg.Sensors.UseRAK1906)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "FPort", Widget: portSelect},
			{Text: "Confirmed uplinks", Widget: confirmedCheck},
			{Text: "RAK1901 (SHTC3)", Widget: rak1901Check},
			{Text: "RAK1906 (BME680)", Widget: rak1906Check},
		},
		OnSubmit: func() {
			edited := *state.cfg
			if n, ok := byOption[portSelect.Selected]; ok {
				edited.Node.Port = n
			}
			edited.Node.Confirmed = confirmedCheck.Checked
			edited.Sensors.UseRAK1901 = rak1901Check.Checked
			edited.Sensors.UseRAK1906 = rak1906Check.Checked
			saveConfig(state, &edited)
		},
	}

	return container.NewTabItem("Node", form)
}

// createScheduleTab edits the duty cycle timing and the trigger.
func createScheduleTab(state *appState) *container.TabItem {
	s := state.cfg.Schedule

	normalEntry := widget.NewEntry()
	normalEntry.SetText(s.NormalPeriod.String())

	fastEntry := widget.NewEntry()
	fastEntry.SetText(s.FastPeriod.String())

	cyclesEntry := widget.NewEntry()
	cyclesEntry.SetText(strconv.Itoa(s.ActiveCycles))

	settleEntry := widget.NewEntry()
	settleEntry.SetText(s.SettleDelay.String())

	triggerEntry := widget.NewEntry()
	triggerEntry.SetText(strconv.FormatUint(uint64(state.cfg.Trigger.TurbidityNTU), 10))

	samplesEntry := widget.NewEntry()
	samplesEntry.SetText(strconv.Itoa(state.cfg.Sensors.TurbiditySamples))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Normal period", Widget: normalEntry},
			{Text: "Fast period", Widget: fastEntry},
			{Text: "Active cycles", Widget: cyclesEntry},
			{Text: "Sensor settle delay", Widget: settleEntry},
			{Text: "Trigger (NTU)", Widget: triggerEntry},
			{Text: "Turbidity samples", Widget: samplesEntry},
		},
		OnSubmit: func() {
			edited := *state.cfg
			if d, err := time.ParseDuration(normalEntry.Text); err == nil {
				edited.Schedule.NormalPeriod = d
			}
			if d, err := time.ParseDuration(fastEntry.Text); err == nil {
				edited.Schedule.FastPeriod = d
			}
			if n, err := strconv.Atoi(cyclesEntry.Text); err == nil {
				edited.Schedule.ActiveCycles = n
			}
			if d, err := time.ParseDuration(settleEntry.Text); err == nil {
				edited.Schedule.SettleDelay = d
			}
			if n, err := strconv.ParseUint(triggerEntry.Text, 10, 32); err == nil {
				edited.Trigger.TurbidityNTU = uint32(n)
			}
			if n, err := strconv.Atoi(samplesEntry.Text); err == nil && n > 0 {
				edited.Sensors.TurbiditySamples = n
			}
			saveConfig(state, &edited)
		},
	}

	return container.NewTabItem("Schedule", form)
}

// createRadioTab selects and configures the uplink backend.
func createRadioTab(state *appState) *container.TabItem {
	rc := state.cfg.Radio

	backendSelect := widget.NewSelect([]string{
		config.BackendMock, config.BackendMQTT, config.BackendModem, config.BackendABP,
	}, nil)
	backendSelect.SetSelected(rc.Backend)

	brokerEntry := widget.NewEntry()
	brokerEntry.SetText(rc.MQTT.Broker)
	topicEntry := widget.NewEntry()
	topicEntry.SetText(rc.MQTT.Topic)

	// Serial ports, keeping the configured one even if it is not plugged in
	ports, err := host.Ports()
	if err != nil {
		state.log.Warnf("%v", err)
	}
	found := false
	for _, p := range ports {
		found = found || p == rc.Modem.Port
	}
	if !found && rc.Modem.Port != "" {
		ports = append(ports, rc.Modem.Port)
	}
	serialSelect := widget.NewSelect(ports, nil)
	serialSelect.SetSelected(rc.Modem.Port)

	devAddrEntry := widget.NewEntry()
	devAddrEntry.SetText(rc.ABP.DevAddr)
	nwkKeyEntry := widget.NewPasswordEntry()
	nwkKeyEntry.SetText(rc.ABP.NwkSKey)
	appKeyEntry := widget.NewPasswordEntry()
	appKeyEntry.SetText(rc.ABP.AppSKey)
	regionEntry := widget.NewEntry()
	regionEntry.SetText(rc.ABP.Region)
	drEntry := widget.NewEntry()
	drEntry.SetText(strconv.Itoa(rc.ABP.DataRate))
	fcntEntry := widget.NewEntry()
	fcntEntry.SetText(strconv.FormatUint(uint64(rc.ABP.FCnt), 10))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Backend", Widget: backendSelect},
			{Text: "MQTT broker", Widget: brokerEntry},
			{Text: "MQTT topic", Widget: topicEntry},
			{Text: "Modem serial port", Widget: serialSelect},
			{Text: "ABP DevAddr", Widget: devAddrEntry},
			{Text: "ABP NwkSKey", Widget: nwkKeyEntry},
			{Text: "ABP AppSKey", Widget: appKeyEntry},
			{Text: "Region", Widget: regionEntry},
			{Text: "Data rate", Widget: drEntry},
			{Text: "ABP first FCnt", Widget: fcntEntry},
		},
		OnSubmit: func() {
			edited := *state.cfg
			edited.Radio.Backend = backendSelect.Selected
			edited.Radio.MQTT.Broker = brokerEntry.Text
			edited.Radio.MQTT.Topic = topicEntry.Text
			if serialSelect.Selected != "" {
				edited.Radio.Modem.Port = serialSelect.Selected
			}
			edited.Radio.ABP.DevAddr = devAddrEntry.Text
			edited.Radio.ABP.NwkSKey = nwkKeyEntry.Text
			edited.Radio.ABP.AppSKey = appKeyEntry.Text
			edited.Radio.ABP.Region = regionEntry.Text
			if dr, err := strconv.Atoi(drEntry.Text); err == nil {
				edited.Radio.ABP.DataRate = dr
			}
			if fcnt, err := strconv.ParseUint(fcntEntry.Text, 10, 32); err == nil {
				edited.Radio.ABP.FCnt = uint32(fcnt)
			}
			if edited.Radio.Backend == config.BackendABP {
				if _, err := abp.ParseConfig(edited.Radio.ABP.DevAddr, edited.Radio.ABP.NwkSKey,
					edited.Radio.ABP.AppSKey, edited.Radio.ABP.Region, edited.Radio.ABP.DataRate); err != nil {
					dialog.ShowError(err, state.window)
					return
				}
			}
			saveConfig(state, &edited)
		},
	}

	return container.NewTabItem("Radio", form)
}

// createMockTab edits the simulated values the sliders do not cover.
func createMockTab(state *appState) *container.TabItem {
	m := state.cfg.Mock

	pressureEntry := widget.NewEntry()
	pressureEntry.SetText(strconv.FormatUint(uint64(m.Pressure), 10))

	gasEntry := widget.NewEntry()
	gasEntry.SetText(strconv.FormatUint(uint64(m.GasResistance), 10))

	latEntry := widget.NewEntry()
	latEntry.SetText(strconv.FormatFloat(float64(m.Latitude), 'f', 4, 32))

	lonEntry := widget.NewEntry()
	lonEntry.SetText(strconv.FormatFloat(float64(m.Longitude), 'f', 4, 32))

	noiseEntry := widget.NewEntry()
	noiseEntry.SetText(strconv.FormatFloat(float64(m.NoiseLevel), 'f', 1, 32))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Pressure (Pa)", Widget: pressureEntry},
			{Text: "Gas resistance (Ω)", Widget: gasEntry},
			{Text: "Latitude", Widget: latEntry},
			{Text: "Longitude", Widget: lonEntry},
			{Text: "Analog noise (mV)", Widget: noiseEntry},
		},
		OnSubmit: func() {
			edited := *state.cfg
			if v, err := strconv.ParseUint(pressureEntry.Text, 10, 32); err == nil {
				edited.Mock.Pressure = uint32(v)
			}
			if v, err := strconv.ParseUint(gasEntry.Text, 10, 32); err == nil {
				edited.Mock.GasResistance = uint32(v)
			}
			if v, err := strconv.ParseFloat(latEntry.Text, 32); err == nil {
				edited.Mock.Latitude = float32(v)
			}
			if v, err := strconv.ParseFloat(lonEntry.Text, 32); err == nil {
				edited.Mock.Longitude = float32(v)
			}
			if v, err := strconv.ParseFloat(noiseEntry.Text, 32); err == nil {
				edited.Mock.NoiseLevel = float32(v)
			}
			saveConfig(state, &edited)
			applyEnvironment(state)
		},
	}

	return container.NewTabItem("Mock", form)
}
