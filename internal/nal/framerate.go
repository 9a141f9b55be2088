package nal

import (
	"github.com/Eyevinn/mp4ff/avc"
)

// DefaultFrameRate is assumed when no SPS with VUI timing info is
// present in a stream.
const DefaultFrameRate = 25.0

// FrameRate estimates the stream frame rate from the first SPS that
// carries VUI timing info. Falls back to DefaultFrameRate when no SPS
// parses or timing info is absent.
func (s Sequence) FrameRate() float64 {
	for _, u := range s {
		if u.Type != avc.NALU_SPS {
			continue
		}
		sps, err := avc.ParseSPSNALUnit(u.Payload, true)
		if err != nil || sps.VUI == nil {
			continue
		}
		if sps.VUI.NumUnitsInTick > 0 && sps.VUI.TimeScale > 0 {
			// Two ticks per frame in AVC timing
			return float64(sps.VUI.TimeScale) / (2 * float64(sps.VUI.NumUnitsInTick))
		}
	}
	return DefaultFrameRate
}
