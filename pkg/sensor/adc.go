package sensor

var _ Analog = (*ADCChannel)(nil)

// ADCChannel is an Analog reading raw counts from an ADC pin.
type ADCChannel struct {
	cfg  ADCConfig
	init func() error
	read func() uint16
}

// NewADCChannel creates a channel converting read() counts with cfg.
// init may be nil.
func NewADCChannel(cfg ADCConfig, init func() error, read func() uint16) *ADCChannel {
	return &ADCChannel{cfg: cfg, init: init, read: read}
}

// Quantize wraps a millivolt source so that it reads through an ADC with
// cfg, as the hardware would.
func Quantize(cfg ADCConfig, src Analog) *ADCChannel {
	return NewADCChannel(cfg, src.Init, func() uint16 { return cfg.FromMV(src.ReadMV()) })
}

func (c *ADCChannel) Init() error {
	if c.init == nil {
		return nil
	}
	return c.init()
}

// ReadMV returns the sensor voltage in millivolts.
func (c *ADCChannel) ReadMV() float32 {
	return c.cfg.ToMV(c.read())
}

// Config returns the conversion settings.
func (c *ADCChannel) Config() ADCConfig { return c.cfg }
