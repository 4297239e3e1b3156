package abp

import (
	"fmt"
	"strings"

	"github.com/brocaar/lorawan"
	"github.com/brocaar/lorawan/band"

	"github.com/itohio/wisnode/pkg/radio"
)

// DefaultRegion is the band plan the node ships with.
const DefaultRegion = band.AU_915_928

var regions = map[string]band.Name{
	"AS923": band.AS_923,
	"AU915": band.AU_915_928,
	"CN470": band.CN_470_510,
	"CN779": band.CN_779_787,
	"EU433": band.EU_433,
	"EU868": band.EU_863_870,
	"IN865": band.IN_865_867,
	"KR920": band.KR_920_923,
	"RU864": band.RU_864_870,
	"US915": band.US_902_928,
}

// ParseRegion accepts short band names such as "AU915".
func ParseRegion(s string) (band.Name, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if n, ok := regions[name]; ok {
		return n, nil
	}
	for _, n := range regions {
		if strings.EqualFold(string(n), name) {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown region %q", s)
}

// MaxPayload returns the largest FRMPayload the region allows at dataRate
// for a LoRaWAN 1.0.2 device without repeater.
func MaxPayload(region band.Name, dataRate int) (int, error) {
	b, err := band.GetConfig(region, false, lorawan.DwellTimeNoLimit)
	if err != nil {
		return 0, fmt.Errorf("region %s: %w", region, err)
	}
	mps, err := b.GetMaxPayloadSizeForDataRateIndex(band.LoRaWAN_1_0_2, band.RegParamRevB, dataRate)
	if err != nil {
		return 0, fmt.Errorf("region %s data rate %d: %w", region, dataRate, err)
	}
	return mps.N, nil
}

// CheckPayload returns ErrPayloadExceedsDataRate when size bytes do not fit.
func CheckPayload(region band.Name, dataRate, size int) error {
	max, err := MaxPayload(region, dataRate)
	if err != nil {
		return err
	}
	if size > max {
		return fmt.Errorf("%d bytes at DR%d in %s (max %d): %w", size, dataRate, region, max, radio.ErrPayloadExceedsDataRate)
	}
	return nil
}
