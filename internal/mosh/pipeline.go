package mosh

import (
	"math/rand"

	"github.com/Eyevinn/mosh264/internal/nal"
	slices "golang.org/x/exp/slices"
)

// Stats counts what the pipeline did to a stream, summed over both
// clips of a processing run.
type Stats struct {
	Removed    int `json:"removed"`
	Duplicated int `json:"duplicated"`
	Corrupted  int `json:"corrupted"`
	Dropped    int `json:"dropped"`
}

// Share of a payload that gets mangled at full corrupt intensity.
const corruptShare = 0.02

// apply runs all mutation stages on one clip in fixed order. Each
// stage returns a new sequence; the input is never modified. Stage
// order matters: duplication sees the post-removal sequence, the
// corruption stage sees duplicated units, and dropping runs last.
func (c Config) apply(seq nal.Sequence, rnd *rand.Rand, st *Stats) nal.Sequence {
	if c.RemoveParameterSets {
		seq = removeParameterSets(seq, st)
	}
	seq = removeKeyframes(seq, c.IFrameMode, st)
	seq = duplicateInterFrames(seq, c.DupFactor, c.DupProbability, rnd, st)
	seq = reorderWindows(seq, c.ReorderProbability, c.ReorderWindow, rnd)
	seq = corruptInterFrames(seq, c.CorruptProbability, c.CorruptIntensity, rnd, st)
	seq = dropFrames(seq, c.DropProbability, rnd, st)
	return seq
}

// removeParameterSets drops every SPS and PPS. With these gone the
// decoder cannot re-initialize cleanly, which is what produces the
// moshing artifact once a differently-configured stream is spliced in.
func removeParameterSets(seq nal.Sequence, st *Stats) nal.Sequence {
	out := make(nal.Sequence, 0, len(seq))
	for _, u := range seq {
		if u.Role() == nal.RoleParameterSet {
			st.Removed++
			continue
		}
		out = append(out, u)
	}
	return out
}

// removeKeyframes drops IDR units per mode. Without its keyframe the
// decoder predicts from whatever frame came before the splice point.
func removeKeyframes(seq nal.Sequence, mode IFrameMode, st *Stats) nal.Sequence {
	if mode == KeepAll {
		return seq
	}
	out := make(nal.Sequence, 0, len(seq))
	removedFirst := false
	for _, u := range seq {
		if u.Role() == nal.RoleKeyframe {
			if mode == RemoveAll || (mode == RemoveFirst && !removedFirst) {
				removedFirst = true
				st.Removed++
				continue
			}
		}
		out = append(out, u)
	}
	return out
}

// duplicateInterFrames inserts factor byte-identical copies right
// after each selected P-frame. Parameter sets and keyframes are never
// duplicated.
func duplicateInterFrames(seq nal.Sequence, factor int, p float64, rnd *rand.Rand, st *Stats) nal.Sequence {
	if factor <= 0 || p <= 0 {
		return seq
	}
	out := make(nal.Sequence, 0, len(seq))
	for _, u := range seq {
		out = append(out, u)
		if u.Role() != nal.RoleInterFrame || rnd.Float64() >= p {
			continue
		}
		for i := 0; i < factor; i++ {
			out = append(out, u.Clone())
			st.Duplicated++
		}
	}
	return out
}

// reorderWindows partitions the sequence into contiguous windows of
// the given size and shuffles selected windows in place. A unit never
// leaves its window, so corruption stays local.
func reorderWindows(seq nal.Sequence, p float64, window int, rnd *rand.Rand) nal.Sequence {
	if p <= 0 || window < 2 || len(seq) < 2 {
		return seq
	}
	out := slices.Clone(seq)
	for start := 0; start < len(out); start += window {
		end := start + window
		if end > len(out) {
			end = len(out)
		}
		if rnd.Float64() >= p {
			continue
		}
		w := out[start:end]
		rnd.Shuffle(len(w), func(i, j int) {
			w[i], w[j] = w[j], w[i]
		})
	}
	return out
}

// corruptInterFrames mangles payload bytes of selected P-frames. Byte
// offsets are drawn strictly after the NAL header byte so the type
// field survives and the unit stays classifiable. I-frames and
// parameter sets are never touched.
func corruptInterFrames(seq nal.Sequence, p, intensity float64, rnd *rand.Rand, st *Stats) nal.Sequence {
	if p <= 0 || intensity <= 0 {
		return seq
	}
	out := make(nal.Sequence, 0, len(seq))
	for _, u := range seq {
		if u.Role() != nal.RoleInterFrame || len(u.Payload) < 2 || rnd.Float64() >= p {
			out = append(out, u)
			continue
		}
		cu := u.Clone()
		body := len(cu.Payload) - 1
		n := int(intensity * corruptShare * float64(body))
		if n < 1 {
			n = 1
		}
		for i := 0; i < n; i++ {
			idx := 1 + rnd.Intn(body)
			cu.Payload[idx] ^= byte(1 + rnd.Intn(255))
		}
		st.Corrupted++
		out = append(out, cu)
	}
	return out
}

// dropFrames removes frame-bearing units with the given probability.
// Parameter sets and other non-frame units always survive.
func dropFrames(seq nal.Sequence, p float64, rnd *rand.Rand, st *Stats) nal.Sequence {
	if p <= 0 {
		return seq
	}
	out := make(nal.Sequence, 0, len(seq))
	for _, u := range seq {
		if u.IsFrame() && rnd.Float64() < p {
			st.Dropped++
			continue
		}
		out = append(out, u)
	}
	return out
}
