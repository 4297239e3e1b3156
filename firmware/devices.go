//go:build tinygo

package main

import (
	"errors"
	"sync"

	"machine"

	"github.com/brocaar/lorawan"
	"github.com/brocaar/lorawan/band"
	lorastack "github.com/ofauchon/go-lorawan-stack"
	"tinygo.org/x/drivers/lora"
	"tinygo.org/x/drivers/shtc3"
	"tinygo.org/x/drivers/sx126x"

	"github.com/itohio/wisnode/pkg/radio/abp"
	"github.com/itohio/wisnode/pkg/sensor"
)

var errNoRadio = errors.New("sx126x not detected")

// newADC reads pin through the nRF52 SAADC.
func newADC(pin machine.Pin, cfg sensor.ADCConfig) *sensor.ADCChannel {
	adc := machine.ADC{Pin: pin}
	init := func() error {
		return adc.Configure(machine.ADCConfig{
			Reference:  uint32(cfg.ReferenceMV),
			Resolution: uint32(cfg.Resolution),
		})
	}
	// machine.ADC.Get is always scaled to 16 bits
	shift := 16 - cfg.Resolution
	return sensor.NewADCChannel(cfg, init, func() uint16 { return adc.Get() >> shift })
}

var _ sensor.Environmental = (*rak1901)(nil)

// rak1901 adapts the SHTC3 driver. The sensor is read once per cycle in
// DataReady and the cached values served to the getters.
type rak1901 struct {
	dev         shtc3.Device
	temperature float32
	humidity    float32
}

func newSHTC3() *rak1901 {
	return &rak1901{}
}

func (r *rak1901) Init(fields sensor.FieldSet) error {
	if fields.Has(sensor.Pressure) || fields.Has(sensor.GasResistance) {
		return sensor.ErrUnsupportedField
	}
	if err := machine.I2C0.Configure(machine.I2CConfig{SDA: PIN_I2C_SDA, SCL: PIN_I2C_SCL}); err != nil {
		return err
	}
	r.dev = shtc3.New(machine.I2C0)
	return r.dev.WakeUp()
}

func (r *rak1901) DataReady() bool {
	if err := r.dev.WakeUp(); err != nil {
		return false
	}
	t, h, err := r.dev.ReadTemperatureHumidity()
	r.dev.Sleep()
	if err != nil {
		return false
	}
	r.temperature = float32(t) / 1000
	r.humidity = float32(h) / 100
	return true
}

func (r *rak1901) Temperature() float32  { return r.temperature }
func (r *rak1901) Humidity() float32     { return r.humidity }
func (r *rak1901) Pressure() uint32      { return 0 }
func (r *rak1901) GasResistance() uint32 { return 0 }

var _ lorastack.LoraRadio = (*sx1262)(nil)

// sx1262 exposes the driver through the LoRa stack's radio interface.
type sx1262 struct {
	mu  sync.Mutex
	dev *sx126x.Device
}

func newLoRa(session abp.Config) (*sx1262, error) {
	bnd, err := band.GetConfig(session.Region, false, lorawan.DwellTimeNoLimit)
	if err != nil {
		return nil, err
	}
	dr, err := bnd.GetDataRate(session.DataRate)
	if err != nil {
		return nil, err
	}

	PIN_LORA_ANT.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_LORA_ANT.High()
	PIN_LORA_RESET.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_LORA_RESET.High()

	spi := machine.SPI1
	if err := spi.Configure(machine.SPIConfig{
		SCK:       PIN_LORA_SCK,
		SDO:       PIN_LORA_MOSI,
		SDI:       PIN_LORA_MISO,
		Frequency: 8 * machine.MHz,
		Mode:      0,
	}); err != nil {
		return nil, err
	}

	dev := sx126x.New(spi)
	dev.SetDeviceType(sx126x.DEVICE_TYPE_SX1262)
	rc := sx126x.NewRadioControl(PIN_LORA_NSS, PIN_LORA_BUSY, PIN_LORA_DIO1, machine.NoPin, machine.NoPin, machine.NoPin)
	if err := dev.SetRadioController(rc); err != nil {
		return nil, err
	}
	dev.Reset()
	if !dev.DetectDevice() {
		return nil, errNoRadio
	}

	dev.LoraConfig(lora.Config{
		Freq:           LORA_FREQUENCY,
		Bw:             bandwidth(dr.Bandwidth),
		Sf:             uint8(dr.SpreadFactor),
		Cr:             lora.CodingRate4_5,
		HeaderType:     lora.HeaderExplicit,
		Preamble:       LORA_PREAMBLE,
		Ldr:            lora.LowDataRateOptimizeOff,
		Iq:             lora.IQStandard,
		Crc:            lora.CRCOn,
		SyncWord:       lora.SyncPublic,
		LoraTxPowerDBm: LORA_TX_POWER_DBM,
	})
	return &sx1262{dev: dev}, nil
}

func bandwidth(khz int) uint8 {
	switch khz {
	case 500:
		return lora.Bandwidth_500_0
	case 250:
		return lora.Bandwidth_250_0
	default:
		return lora.Bandwidth_125_0
	}
}

func (r *sx1262) LoraTx(pkt []uint8, timeoutSec uint8) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dev.Tx(pkt, uint32(timeoutSec)*1000)
}

func (r *sx1262) LoraRx(timeoutSec uint8) ([]uint8, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dev.Rx(uint32(timeoutSec) * 1000)
}

func (r *sx1262) SetLoraFrequency(freq uint32)    { r.dev.SetFrequency(freq) }
func (r *sx1262) SetLoraIqMode(mode uint8)        { r.dev.SetIqMode(mode) }
func (r *sx1262) SetLoraCodingRate(cr uint8)      { r.dev.SetCodingRate(cr) }
func (r *sx1262) SetLoraBandwidth(bw uint8)       { r.dev.SetBandwidth(bw) }
func (r *sx1262) SetLoraCrc(enable bool)          { r.dev.SetCrc(enable) }
func (r *sx1262) SetLoraSpreadingFactor(sf uint8) { r.dev.SetSpreadingFactor(sf) }
