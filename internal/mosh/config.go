// Package mosh applies structural datamoshing mutations to H.264
// NAL-unit sequences and splices two mutated clips into one stream.
package mosh

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is wrapped by all config validation failures.
var ErrInvalidConfig = errors.New("invalid config")

// IFrameMode selects how keyframe units are removed.
type IFrameMode int

const (
	KeepAll IFrameMode = iota
	RemoveFirst
	RemoveAll
)

func (m IFrameMode) String() string {
	switch m {
	case RemoveFirst:
		return "first"
	case RemoveAll:
		return "all"
	default:
		return "none"
	}
}

// ParseIFrameMode parses the mode names used on the CLI and in the
// upload form: "none", "first" or "all".
func ParseIFrameMode(s string) (IFrameMode, error) {
	switch s {
	case "none", "":
		return KeepAll, nil
	case "first":
		return RemoveFirst, nil
	case "all":
		return RemoveAll, nil
	default:
		return KeepAll, fmt.Errorf("%w: unknown i-frame mode %q", ErrInvalidConfig, s)
	}
}

// Config holds all effect parameters. The zero value is not the
// default; use DefaultConfig and override fields.
type Config struct {
	// RemoveParameterSets drops every SPS and PPS unit.
	RemoveParameterSets bool
	// IFrameMode controls keyframe removal.
	IFrameMode IFrameMode
	// OffsetSeconds trims this much from the start of clip B before
	// concatenation. Applied to clip B only.
	OffsetSeconds float64
	// DupFactor extra copies are inserted after a P-frame selected with
	// DupProbability.
	DupFactor      int
	DupProbability float64
	// ReorderProbability shuffles a window of ReorderWindow consecutive
	// units in place.
	ReorderProbability float64
	ReorderWindow      int
	// CorruptProbability mangles payload bytes of a P-frame, the byte
	// count scaling with CorruptIntensity.
	CorruptProbability float64
	CorruptIntensity   float64
	// DropProbability removes a frame-bearing unit outright.
	DropProbability float64
}

// DefaultConfig returns a no-op configuration: all probabilities zero,
// nothing removed. DupFactor, ReorderWindow and CorruptIntensity carry
// the values the effects use once their probability is raised.
func DefaultConfig() Config {
	return Config{
		RemoveParameterSets: false,
		IFrameMode:          KeepAll,
		DupFactor:           1,
		ReorderWindow:       10,
		CorruptIntensity:    0.5,
	}
}

// Validate checks ranges. All errors wrap ErrInvalidConfig.
func (c Config) Validate() error {
	if c.OffsetSeconds < 0 {
		return fmt.Errorf("%w: offset %.3f is negative", ErrInvalidConfig, c.OffsetSeconds)
	}
	if c.DupFactor < 0 {
		return fmt.Errorf("%w: dup factor %d is negative", ErrInvalidConfig, c.DupFactor)
	}
	if c.ReorderWindow < 1 {
		return fmt.Errorf("%w: reorder window %d is not positive", ErrInvalidConfig, c.ReorderWindow)
	}
	probs := []struct {
		name string
		v    float64
	}{
		{"dup probability", c.DupProbability},
		{"reorder probability", c.ReorderProbability},
		{"corrupt probability", c.CorruptProbability},
		{"corrupt intensity", c.CorruptIntensity},
		{"drop probability", c.DropProbability},
	}
	for _, p := range probs {
		if p.v < 0 || p.v > 1 {
			return fmt.Errorf("%w: %s %.3f outside [0,1]", ErrInvalidConfig, p.name, p.v)
		}
	}
	return nil
}
