package abp

import (
	"errors"
	"testing"

	"github.com/brocaar/lorawan"
	"github.com/brocaar/lorawan/band"
	qt "github.com/frankban/quicktest"

	"github.com/itohio/wisnode/pkg/radio"
)

type fakeLoraRadio struct {
	tx    [][]byte
	txErr error
	freq  uint32
}

func (f *fakeLoraRadio) LoraTx(pkt []uint8, _ uint8) error {
	if f.txErr != nil {
		return f.txErr
	}
	f.tx = append(f.tx, append([]byte(nil), pkt...))
	return nil
}
func (f *fakeLoraRadio) LoraRx(uint8) ([]uint8, error) { return nil, nil }
func (f *fakeLoraRadio) SetLoraFrequency(freq uint32)  { f.freq = freq }
func (f *fakeLoraRadio) SetLoraIqMode(uint8)           {}
func (f *fakeLoraRadio) SetLoraCodingRate(uint8)       {}
func (f *fakeLoraRadio) SetLoraBandwidth(uint8)        {}
func (f *fakeLoraRadio) SetLoraCrc(bool)               {}
func (f *fakeLoraRadio) SetLoraSpreadingFactor(uint8)  {}

const (
	testDevAddr = "26011bda"
	testNwkSKey = "000102030405060708090a0b0c0d0e0f"
	testAppSKey = "0f0e0d0c0b0a09080706050403020100"
)

func TestABP_Send(t *testing.T) {
	c := qt.New(t)

	cfg, err := ParseConfig(testDevAddr, testNwkSKey, testAppSKey, "EU868", 0)
	c.Assert(err, qt.IsNil)

	tr := &fakeLoraRadio{}
	link, err := New(tr, cfg, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(link.Connected(), qt.Equals, true)

	payload := []byte{0x0E, 0x74, 0x08, 0x66, 0x00, 0x01, 0x8B, 0xCD}
	c.Assert(link.Send(7, payload, radio.Unconfirmed), qt.IsNil)
	c.Assert(link.Send(7, payload, radio.Confirmed), qt.IsNil)
	c.Assert(link.FCnt(), qt.Equals, uint32(2))
	c.Assert(tr.tx, qt.HasLen, 2)

	for i, raw := range tr.tx {
		var phy lorawan.PHYPayload
		c.Assert(phy.UnmarshalBinary(raw), qt.IsNil)

		ok, err := phy.ValidateUplinkDataMIC(lorawan.LoRaWAN1_0, 0, 0, 0, cfg.NwkSKey, cfg.NwkSKey)
		c.Assert(err, qt.IsNil)
		c.Assert(ok, qt.Equals, true)

		c.Assert(phy.DecryptFRMPayload(cfg.AppSKey), qt.IsNil)
		mac, isMAC := phy.MACPayload.(*lorawan.MACPayload)
		c.Assert(isMAC, qt.Equals, true)
		c.Assert(mac.FHDR.DevAddr, qt.Equals, cfg.DevAddr)
		c.Assert(mac.FHDR.FCnt, qt.Equals, uint32(i))
		c.Assert(*mac.FPort, qt.Equals, uint8(7))

		data, isData := mac.FRMPayload[0].(*lorawan.DataPayload)
		c.Assert(isData, qt.Equals, true)
		c.Assert(data.Bytes, qt.DeepEquals, payload)
	}

	var first lorawan.PHYPayload
	c.Assert(first.UnmarshalBinary(tr.tx[0]), qt.IsNil)
	c.Assert(first.MHDR.MType, qt.Equals, lorawan.UnconfirmedDataUp)
	var second lorawan.PHYPayload
	c.Assert(second.UnmarshalBinary(tr.tx[1]), qt.IsNil)
	c.Assert(second.MHDR.MType, qt.Equals, lorawan.ConfirmedDataUp)
}

func TestABP_StartingFCnt(t *testing.T) {
	c := qt.New(t)

	cfg, err := ParseConfig(testDevAddr, testNwkSKey, testAppSKey, "EU868", 0)
	c.Assert(err, qt.IsNil)
	cfg.FCnt = 1000

	tr := &fakeLoraRadio{}
	link, err := New(tr, cfg, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(link.FCnt(), qt.Equals, uint32(1000))

	c.Assert(link.Send(13, []byte{1, 2, 3, 4, 5, 6}, radio.Unconfirmed), qt.IsNil)
	c.Assert(link.FCnt(), qt.Equals, uint32(1001))

	var phy lorawan.PHYPayload
	c.Assert(phy.UnmarshalBinary(tr.tx[0]), qt.IsNil)
	ok, err := phy.ValidateUplinkDataMIC(lorawan.LoRaWAN1_0, 0, 0, 0, cfg.NwkSKey, cfg.NwkSKey)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.Equals, true)
	mac := phy.MACPayload.(*lorawan.MACPayload)
	c.Assert(mac.FHDR.FCnt, qt.Equals, uint32(1000))
}

func TestABP_Errors(t *testing.T) {
	c := qt.New(t)

	cfg, err := ParseConfig(testDevAddr, testNwkSKey, testAppSKey, "EU868", 0)
	c.Assert(err, qt.IsNil)

	tr := &fakeLoraRadio{txErr: errors.New("busy")}
	link, err := New(tr, cfg, nil)
	c.Assert(err, qt.IsNil)

	c.Assert(link.Send(1, []byte{1}, radio.Unconfirmed), qt.ErrorMatches, "lora tx: busy")

	err = link.Send(1, make([]byte, 200), radio.Unconfirmed)
	c.Assert(errors.Is(err, radio.ErrPayloadExceedsDataRate), qt.Equals, true)
}

func TestParseConfig_Invalid(t *testing.T) {
	c := qt.New(t)

	_, err := ParseConfig("zz", testNwkSKey, testAppSKey, "EU868", 0)
	c.Assert(err, qt.ErrorMatches, "dev_addr: .*")
	_, err = ParseConfig(testDevAddr, "00", testAppSKey, "EU868", 0)
	c.Assert(err, qt.ErrorMatches, "nwk_s_key: .*")
	_, err = ParseConfig(testDevAddr, testNwkSKey, testAppSKey, "MARS", 0)
	c.Assert(err, qt.ErrorMatches, `unknown region "MARS"`)
}

func TestRegions(t *testing.T) {
	c := qt.New(t)

	r, err := ParseRegion("au915")
	c.Assert(err, qt.IsNil)
	c.Assert(r, qt.Equals, band.AU_915_928)

	c.Assert(CheckPayload(band.EU_863_870, 0, 8), qt.IsNil)
	err = CheckPayload(band.EU_863_870, 0, 200)
	c.Assert(errors.Is(err, radio.ErrPayloadExceedsDataRate), qt.Equals, true)

	_, err = MaxPayload(band.AU_915_928, 99)
	c.Assert(err, qt.Not(qt.IsNil))
}
