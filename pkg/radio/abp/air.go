package abp

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/brocaar/lorawan"
	lorastack "github.com/ofauchon/go-lorawan-stack"

	"github.com/itohio/wisnode/pkg/logging"
	"github.com/itohio/wisnode/pkg/radio"
)

var _ lorastack.LoraRadio = (*Air)(nil)

// ErrBadMIC means a received frame failed the integrity check.
var ErrBadMIC = errors.New("invalid MIC")

// AirFrame is an uplink as seen by the network side of Air.
type AirFrame struct {
	Time      time.Time
	DevAddr   lorawan.DevAddr
	FCnt      uint32
	Port      uint8
	Payload   []byte
	Confirmed bool
	Raw       []byte
	Err       error // MIC or decryption failure, Payload is empty
}

// Air stands in for a LoRa transceiver on a host. Every transmitted
// PHYPayload is checked and decrypted with the session keys, the way a
// network server would, and handed to OnUplink subscribers.
type Air struct {
	session Config
	log     *logging.Logger
	now     func() time.Time

	mu        sync.Mutex
	frames    []AirFrame
	callbacks []func(AirFrame)
	freq      uint32
	sf        uint8
	bw        uint8
	cr        uint8
}

// NewAir creates an Air decoding frames with session.
func NewAir(session Config, log *logging.Logger) *Air {
	return &Air{session: session, log: log, now: time.Now}
}

// OnUplink registers a callback for every transmitted frame.
func (a *Air) OnUplink(cb func(AirFrame)) {
	a.mu.Lock()
	a.callbacks = append(a.callbacks, cb)
	a.mu.Unlock()
}

// Frames returns every frame transmitted so far.
func (a *Air) Frames() []AirFrame {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]AirFrame(nil), a.frames...)
}

// LoraTx decodes pkt. A frame that does not parse is rejected, one that
// fails the MIC is recorded with Err set.
func (a *Air) LoraTx(pkt []uint8, timeoutSec uint8) error {
	f, err := a.decode(pkt)
	if err != nil {
		return err
	}
	if f.Err != nil {
		a.log.Warnf("air: fcnt=%d %v", f.FCnt, f.Err)
	} else {
		a.log.Debugf("air: %s fcnt=%d port=%d %X @ %d Hz SF%d", f.DevAddr, f.FCnt, f.Port, f.Payload, a.Frequency(), a.sf)
	}

	a.mu.Lock()
	a.frames = append(a.frames, f)
	callbacks := append([]func(AirFrame){}, a.callbacks...)
	a.mu.Unlock()

	for _, cb := range callbacks {
		cb(f)
	}
	return nil
}

func (a *Air) decode(pkt []byte) (AirFrame, error) {
	f := AirFrame{Time: a.now(), Raw: append([]byte(nil), pkt...)}

	var phy lorawan.PHYPayload
	if err := phy.UnmarshalBinary(pkt); err != nil {
		return f, fmt.Errorf("air: %w", err)
	}
	mac, ok := phy.MACPayload.(*lorawan.MACPayload)
	if !ok {
		return f, fmt.Errorf("air: %s is not a data frame", phy.MHDR.MType)
	}
	f.DevAddr = mac.FHDR.DevAddr
	f.FCnt = mac.FHDR.FCnt
	f.Confirmed = phy.MHDR.MType == lorawan.ConfirmedDataUp
	if mac.FPort != nil {
		f.Port = *mac.FPort
	}

	valid, err := phy.ValidateUplinkDataMIC(lorawan.LoRaWAN1_0, 0, 0, 0, a.session.NwkSKey, a.session.NwkSKey)
	switch {
	case err != nil:
		f.Err = err
		return f, nil
	case !valid:
		f.Err = ErrBadMIC
		return f, nil
	}

	if err := phy.DecryptFRMPayload(a.session.AppSKey); err != nil {
		f.Err = err
		return f, nil
	}
	if len(mac.FRMPayload) > 0 {
		if data, ok := mac.FRMPayload[0].(*lorawan.DataPayload); ok {
			f.Payload = data.Bytes
		}
	}
	return f, nil
}

// LoraRx never receives anything; there are no downlinks.
func (a *Air) LoraRx(timeoutSec uint8) ([]uint8, error) {
	return nil, radio.ErrTimeout
}

// Frequency returns the last frequency set.
func (a *Air) Frequency() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.freq
}

func (a *Air) SetLoraFrequency(freq uint32) {
	a.mu.Lock()
	a.freq = freq
	a.mu.Unlock()
}

func (a *Air) SetLoraSpreadingFactor(sf uint8) {
	a.mu.Lock()
	a.sf = sf
	a.mu.Unlock()
}

func (a *Air) SetLoraBandwidth(bw uint8) {
	a.mu.Lock()
	a.bw = bw
	a.mu.Unlock()
}

func (a *Air) SetLoraCodingRate(cr uint8) {
	a.mu.Lock()
	a.cr = cr
	a.mu.Unlock()
}

func (a *Air) SetLoraIqMode(uint8) {}
func (a *Air) SetLoraCrc(bool)     {}
