//go:build tinygo

//go:generate tinygo flash -target=rak4631

package main

import (
	"context"
	"strconv"
	"time"

	"machine"

	"github.com/itohio/wisnode/pkg/config"
	"github.com/itohio/wisnode/pkg/dutycycle"
	"github.com/itohio/wisnode/pkg/logging"
	"github.com/itohio/wisnode/pkg/radio"
	"github.com/itohio/wisnode/pkg/radio/abp"
	"github.com/itohio/wisnode/pkg/sensor"
	"github.com/itohio/wisnode/pkg/timer"
)

func main() {
	machine.Serial.Configure(machine.UARTConfig{BaudRate: UART_BAUD_RATE})

	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		level = logging.LevelInfo
	}
	log := logging.New(machine.Serial, level)

	// Give the USB console a moment before the first lines go out
	time.Sleep(2 * time.Second)
	log.Infof("wisnode starting")

	cfg := config.Default()
	cfg.Radio.Backend = config.BackendABP
	cfg.Radio.ABP.DevAddr = devAddr
	cfg.Radio.ABP.NwkSKey = nwkSKey
	cfg.Radio.ABP.AppSKey = appSKey
	cfg.Radio.ABP.Region = region
	if cfg.Radio.ABP.DataRate, err = strconv.Atoi(dataRate); err != nil {
		halt(log, "data rate", err)
	}
	if err := cfg.Validate(); err != nil {
		halt(log, "config", err)
	}
	def, err := cfg.PortDefinition()
	if err != nil {
		halt(log, "port", err)
	}

	PIN_SENSOR_POWER.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_SENSOR_POWER.Low()
	power := sensor.NewPowerPin(PIN_SENSOR_POWER.Set, log)

	machine.InitADC()
	bank := sensor.NewBank(sensor.BankConfig{
		Battery:           newADC(PIN_BATTERY_ADC, cfg.Sensors.Battery),
		Turbidity:         newADC(PIN_TURBIDITY_ADC, cfg.Sensors.Turbidity),
		RAK1901:           newSHTC3(),
		UseRAK1901:        cfg.Sensors.UseRAK1901,
		TurbiditySamples:  cfg.Sensors.TurbiditySamples,
		TurbidityInterval: cfg.Sensors.TurbidityInterval,
		Log:               log,
	})
	// Sensors need their supply to answer during init
	power.SensorsOn()
	time.Sleep(cfg.Schedule.SettleDelay)
	err = bank.Init(def.Fields)
	power.SensorsOff()
	if err != nil {
		halt(log, "sensor init", err)
	}

	session, err := abp.ParseConfig(devAddr, nwkSKey, appSKey, region, cfg.Radio.ABP.DataRate)
	if err != nil {
		halt(log, "abp session", err)
	}
	fcnt, err := strconv.ParseUint(fcntStart, 10, 32)
	if err != nil {
		halt(log, "abp fcnt", err)
	}
	// The counter is not persisted: after a reboot the network server must
	// accept a reset counter (relaxed frame counters) or fcntStart must be
	// raised past the last uplink.
	session.FCnt = uint32(fcnt)
	log.Warnf("abp frame counter starts at %d", session.FCnt)
	if err := abp.CheckPayload(session.Region, session.DataRate, def.Size()); err != nil {
		halt(log, "abp session", err)
	}
	lora, err := newLoRa(session)
	if err != nil {
		halt(log, "radio", err)
	}
	link, err := abp.New(lora, session, log)
	if err != nil {
		halt(log, "radio", err)
	}

	ctrl, err := dutycycle.New(cfg.Params(def), dutycycle.Deps{
		Radio:   radio.NewCounting(link, log),
		Sensors: bank,
		Power:   power,
		Timer:   timer.NewPeriodic(),
		Log:     log,
	})
	if err != nil {
		halt(log, "controller", err)
	}
	ctrl.OnCycle(func(r dutycycle.Report) {
		if r.Triggered {
			log.Infof("turbidity %d NTU, switching to active", r.Snapshot.Turbidity.Value)
		}
	})

	log.Infof("port %s, normal %s, fast %s", def, cfg.Schedule.NormalPeriod, cfg.Schedule.FastPeriod)
	ctrl.Start()
	if err := ctrl.Run(context.Background()); err != nil {
		halt(log, "controller", err)
	}
}

// halt stops here. A node that failed setup must not transmit.
func halt(log *logging.Logger, what string, err error) {
	log.Errorf("%s: %v, halting", what, err)
	for {
		time.Sleep(time.Hour)
	}
}
