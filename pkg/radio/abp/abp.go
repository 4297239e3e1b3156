package abp

import (
	"fmt"
	"sync"

	"github.com/brocaar/lorawan"
	"github.com/brocaar/lorawan/band"
	lorastack "github.com/ofauchon/go-lorawan-stack"

	"github.com/itohio/wisnode/pkg/logging"
	"github.com/itohio/wisnode/pkg/radio"
)

// Config holds an activation-by-personalisation session.
type Config struct {
	DevAddr   lorawan.DevAddr
	NwkSKey   lorawan.AES128Key
	AppSKey   lorawan.AES128Key
	Region    band.Name
	DataRate  int
	TxTimeout uint8 // seconds

	// FCnt is the first uplink frame counter. Network servers drop ABP
	// uplinks whose counter does not exceed the last one seen, so a node
	// that cannot persist the counter across reboots needs either a
	// starting value past the old session or relaxed frame counter checks
	// on the server.
	FCnt uint32
}

// ParseConfig builds a session from hex strings.
func ParseConfig(devAddr, nwkSKey, appSKey, region string, dataRate int) (Config, error) {
	cfg := Config{DataRate: dataRate, TxTimeout: 5}
	if err := cfg.DevAddr.UnmarshalText([]byte(devAddr)); err != nil {
		return cfg, fmt.Errorf("dev_addr: %w", err)
	}
	if err := cfg.NwkSKey.UnmarshalText([]byte(nwkSKey)); err != nil {
		return cfg, fmt.Errorf("nwk_s_key: %w", err)
	}
	if err := cfg.AppSKey.UnmarshalText([]byte(appSKey)); err != nil {
		return cfg, fmt.Errorf("app_s_key: %w", err)
	}
	r, err := ParseRegion(region)
	if err != nil {
		return cfg, err
	}
	cfg.Region = r
	return cfg, nil
}

var _ radio.Link = (*Link)(nil)

// Link builds LoRaWAN 1.0 data uplinks itself and hands the PHYPayload to a
// raw LoRa radio.
type Link struct {
	radio      lorastack.LoraRadio
	cfg        Config
	maxPayload int
	log        *logging.Logger

	mu   sync.Mutex
	fcnt uint32
}

// New creates the link. The regional payload limit is looked up once.
// Uplinks are numbered from cfg.FCnt.
func New(lr lorastack.LoraRadio, cfg Config, log *logging.Logger) (*Link, error) {
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.TxTimeout == 0 {
		cfg.TxTimeout = 5
	}
	max, err := MaxPayload(cfg.Region, cfg.DataRate)
	if err != nil {
		return nil, err
	}
	return &Link{radio: lr, cfg: cfg, maxPayload: max, log: log, fcnt: cfg.FCnt}, nil
}

// Connected is always true: an ABP session exists from power-up.
func (a *Link) Connected() bool { return a.radio != nil }

// FCnt returns the next uplink frame counter.
func (a *Link) FCnt() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fcnt
}

// Send encrypts payload, signs the frame and transmits it.
func (a *Link) Send(port uint8, payload []byte, confirm radio.Confirm) error {
	if len(payload) > a.maxPayload {
		return fmt.Errorf("%d bytes, max %d: %w", len(payload), a.maxPayload, radio.ErrPayloadExceedsDataRate)
	}

	a.mu.Lock()
	fcnt := a.fcnt
	a.fcnt++
	a.mu.Unlock()

	phy, err := a.build(port, payload, confirm, fcnt)
	if err != nil {
		return err
	}
	if err := a.radio.LoraTx(phy, a.cfg.TxTimeout); err != nil {
		return fmt.Errorf("lora tx: %w", err)
	}
	a.log.Debugf("uplink fcnt=%d port=%d %d bytes", fcnt, port, len(phy))
	return nil
}

func (a *Link) build(port uint8, payload []byte, confirm radio.Confirm, fcnt uint32) ([]byte, error) {
	mtype := lorawan.UnconfirmedDataUp
	if confirm == radio.Confirmed {
		mtype = lorawan.ConfirmedDataUp
	}
	fport := port

	phy := lorawan.PHYPayload{
		MHDR: lorawan.MHDR{MType: mtype, Major: lorawan.LoRaWANR1},
		MACPayload: &lorawan.MACPayload{
			FHDR: lorawan.FHDR{
				DevAddr: a.cfg.DevAddr,
				FCnt:    fcnt,
			},
			FPort:      &fport,
			FRMPayload: []lorawan.Payload{&lorawan.DataPayload{Bytes: append([]byte(nil), payload...)}},
		},
	}

	if err := phy.EncryptFRMPayload(a.cfg.AppSKey); err != nil {
		return nil, fmt.Errorf("failed to encrypt payload: %w", err)
	}
	if err := phy.SetUplinkDataMIC(lorawan.LoRaWAN1_0, 0, 0, 0, a.cfg.NwkSKey, a.cfg.NwkSKey); err != nil {
		return nil, fmt.Errorf("failed to set MIC: %w", err)
	}
	b, err := phy.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal frame: %w", err)
	}
	return b, nil
}
