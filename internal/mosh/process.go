package mosh

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/Eyevinn/mosh264/internal/nal"
)

// ErrEmptyInput is returned when a clip buffer is empty.
var ErrEmptyInput = errors.New("empty input clip")

// Result is the spliced output stream plus counters for diagnostics.
type Result struct {
	Data  []byte
	Stats Stats
}

// Process runs the full pipeline on two raw Annex-B clips: demux both,
// mutate each independently with the same config, trim clip B by the
// configured offset and append it after clip A, then serialize.
//
// rnd drives all effect draws; pass a seeded source for reproducible
// output, or nil for a time-seeded one. Either a complete Result or an
// error is returned, never partial output.
func Process(clipA, clipB []byte, cfg Config, rnd *rand.Rand) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(clipA) == 0 || len(clipB) == 0 {
		return nil, ErrEmptyInput
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	seqA, err := nal.Demux(clipA)
	if err != nil {
		return nil, fmt.Errorf("demuxing clip A: %w", err)
	}
	seqB, err := nal.Demux(clipB)
	if err != nil {
		return nil, fmt.Errorf("demuxing clip B: %w", err)
	}

	// The offset in units is fixed before mutation so that dropped or
	// duplicated frames do not shift the splice point.
	offsetFrames := offsetToFrames(cfg.OffsetSeconds, seqB.FrameRate())

	var st Stats
	outA := cfg.apply(seqA, rnd, &st)
	outB := cfg.apply(seqB, rnd, &st)
	spliced := compose(outA, outB, offsetFrames)

	return &Result{Data: spliced.Bytes(), Stats: st}, nil
}

// offsetToFrames maps a duration to a frame-bearing unit count using
// the stream's estimated frame rate. The NAL layer itself carries no
// timestamps.
func offsetToFrames(seconds, fps float64) int {
	if seconds <= 0 {
		return 0
	}
	return int(math.Round(seconds * fps))
}
