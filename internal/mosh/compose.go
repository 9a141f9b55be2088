package mosh

import (
	"github.com/Eyevinn/mosh264/internal/nal"
)

// trimLeadingFrames removes the contiguous prefix of seq up to and
// including the n:th frame-bearing unit. Non-frame units inside that
// prefix go with it. When fewer than n frame-bearing units exist the
// whole sequence is trimmed, which is how an offset longer than clip B
// ends up contributing nothing rather than failing.
func trimLeadingFrames(seq nal.Sequence, n int) nal.Sequence {
	if n <= 0 {
		return seq
	}
	frames := 0
	for i, u := range seq {
		if !u.IsFrame() {
			continue
		}
		frames++
		if frames == n {
			return seq[i+1:]
		}
	}
	return nal.Sequence{}
}

// compose appends clip B after clip A, trimming offsetFrames leading
// frame-bearing units from B first. The two sequences are never
// interleaved.
func compose(a, b nal.Sequence, offsetFrames int) nal.Sequence {
	b = trimLeadingFrames(b, offsetFrames)
	out := make(nal.Sequence, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}
