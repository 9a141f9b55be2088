package mosh

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Eyevinn/mosh264/internal/nal"
)

const (
	hdrSPS = 0x67
	hdrPPS = 0x68
	hdrIDR = 0x65
	hdrP   = 0x41
	hdrSEI = 0x06
)

// seqOf builds a sequence of units with the given header bytes; a
// counter byte makes every payload unique.
func seqOf(t *testing.T, headers ...byte) nal.Sequence {
	t.Helper()
	var data []byte
	for i, h := range headers {
		data = append(data, 0x00, 0x00, 0x00, 0x01, h, byte(i), 0xAB, 0xCD)
	}
	seq, err := nal.Demux(data)
	require.NoError(t, err)
	require.Len(t, seq, len(headers))
	return seq
}

func headersOf(seq nal.Sequence) []byte {
	out := make([]byte, 0, len(seq))
	for _, u := range seq {
		out = append(out, u.Payload[0])
	}
	return out
}

func testRand() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

func TestRemoveParameterSets(t *testing.T) {
	seq := seqOf(t, hdrSPS, hdrPPS, hdrIDR, hdrP, hdrSPS, hdrP)
	var st Stats
	out := removeParameterSets(seq, &st)
	require.Equal(t, []byte{hdrIDR, hdrP, hdrP}, headersOf(out))
	require.Equal(t, 3, st.Removed)
	require.Zero(t, out.CountRole(nal.RoleParameterSet))
}

func TestRemoveKeyframes(t *testing.T) {
	cases := []struct {
		name    string
		mode    IFrameMode
		want    []byte
		removed int
	}{
		{"keep all", KeepAll, []byte{hdrSPS, hdrIDR, hdrP, hdrIDR, hdrP}, 0},
		{"remove first", RemoveFirst, []byte{hdrSPS, hdrP, hdrIDR, hdrP}, 1},
		{"remove all", RemoveAll, []byte{hdrSPS, hdrP, hdrP}, 2},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			seq := seqOf(t, hdrSPS, hdrIDR, hdrP, hdrIDR, hdrP)
			var st Stats
			out := removeKeyframes(seq, c.mode, &st)
			require.Equal(t, c.want, headersOf(out))
			require.Equal(t, c.removed, st.Removed)
		})
	}
}

func TestRemoveFirstKeyframeWithoutKeyframes(t *testing.T) {
	seq := seqOf(t, hdrSPS, hdrP, hdrP)
	var st Stats
	out := removeKeyframes(seq, RemoveFirst, &st)
	require.Equal(t, []byte{hdrSPS, hdrP, hdrP}, headersOf(out))
	require.Zero(t, st.Removed)
}

func TestDuplicationIsContiguousAndIdentical(t *testing.T) {
	seq := seqOf(t, hdrSPS, hdrIDR, hdrP, hdrP)
	var st Stats
	out := duplicateInterFrames(seq, 2, 1.0, testRand(), &st)

	require.Equal(t, []byte{hdrSPS, hdrIDR, hdrP, hdrP, hdrP, hdrP, hdrP, hdrP}, headersOf(out))
	require.Equal(t, 4, st.Duplicated)
	// Copies directly follow their source and are byte-identical
	require.Equal(t, out[2].Payload, out[3].Payload)
	require.Equal(t, out[2].Payload, out[4].Payload)
	require.Equal(t, out[5].Payload, out[6].Payload)
	// Parameter sets and keyframes are never duplicated
	require.Equal(t, 1, out.CountRole(nal.RoleParameterSet))
	require.Equal(t, 1, out.CountRole(nal.RoleKeyframe))
}

func TestDuplicationNoop(t *testing.T) {
	seq := seqOf(t, hdrP, hdrP)
	var st Stats
	require.Equal(t, seq, duplicateInterFrames(seq, 0, 1.0, testRand(), &st))
	require.Equal(t, seq, duplicateInterFrames(seq, 3, 0, testRand(), &st))
	require.Zero(t, st.Duplicated)
}

func TestReorderLocality(t *testing.T) {
	const window = 3
	headers := make([]byte, 0, 12)
	for i := 0; i < 12; i++ {
		headers = append(headers, hdrP)
	}
	seq := seqOf(t, headers...)
	out := reorderWindows(seq, 1.0, window, testRand())
	require.Len(t, out, len(seq))

	// The counter byte identifies the original index; a unit may only
	// move within its own window.
	for newIdx, u := range out {
		origIdx := int(u.Payload[1])
		require.Equal(t, origIdx/window, newIdx/window,
			"unit %d moved out of its window to %d", origIdx, newIdx)
	}
}

func TestReorderZeroProbabilityKeepsOrder(t *testing.T) {
	seq := seqOf(t, hdrSPS, hdrIDR, hdrP, hdrP, hdrP)
	out := reorderWindows(seq, 0, 2, testRand())
	require.Equal(t, seq, out)
}

func TestCorruptionPreservesRoleAndTargets(t *testing.T) {
	seq := seqOf(t, hdrSPS, hdrIDR, hdrP, hdrP)
	var st Stats
	out := corruptInterFrames(seq, 1.0, 1.0, testRand(), &st)
	require.Equal(t, 2, st.Corrupted)

	for i, u := range out {
		require.Equal(t, seq[i].Role(), u.Role(), "role changed at %d", i)
		// Header byte survives corruption
		require.Equal(t, seq[i].Payload[0], u.Payload[0])
		if u.Role() != nal.RoleInterFrame {
			// Non P-frames are untouched
			require.Equal(t, seq[i].Payload, u.Payload)
		}
	}
	// Inputs are never mutated in place
	require.Equal(t, byte(2), seq[2].Payload[1])
}

func TestCorruptionChangesBytes(t *testing.T) {
	seq := seqOf(t, hdrP)
	var st Stats
	out := corruptInterFrames(seq, 1.0, 1.0, testRand(), &st)
	require.Equal(t, 1, st.Corrupted)
	require.NotEqual(t, seq[0].Payload, out[0].Payload)
}

func TestDropFrames(t *testing.T) {
	seq := seqOf(t, hdrSPS, hdrPPS, hdrIDR, hdrP, hdrP, hdrP, hdrSEI)
	var st Stats
	out := dropFrames(seq, 1.0, testRand(), &st)
	// Only frame-bearing units can be dropped
	require.Equal(t, []byte{hdrSPS, hdrPPS, hdrSEI}, headersOf(out))
	require.Equal(t, 4, st.Dropped)
}

func TestDropMonotonicity(t *testing.T) {
	seq := seqOf(t, hdrIDR, hdrP, hdrP, hdrP, hdrP, hdrP, hdrP, hdrP)
	for _, p := range []float64{0, 0.3, 0.7, 1} {
		var st Stats
		out := dropFrames(seq, p, testRand(), &st)
		require.LessOrEqual(t, out.CountFrames(), seq.CountFrames(), "p=%f", p)
	}
}

func TestTrimLeadingFrames(t *testing.T) {
	seq := seqOf(t, hdrSPS, hdrIDR, hdrP, hdrP, hdrP)

	out := trimLeadingFrames(seq, 2)
	require.Equal(t, []byte{hdrP, hdrP}, headersOf(out))

	require.Equal(t, seq, trimLeadingFrames(seq, 0))
	require.Empty(t, trimLeadingFrames(seq, 4))
	require.Empty(t, trimLeadingFrames(seq, 100))
}

func TestComposeNeverInterleaves(t *testing.T) {
	a := seqOf(t, hdrIDR, hdrP)
	b := seqOf(t, hdrSPS, hdrIDR, hdrP)
	out := compose(a, b, 0)
	require.Equal(t, []byte{hdrIDR, hdrP, hdrSPS, hdrIDR, hdrP}, headersOf(out))
	require.Equal(t, a[0].Payload, out[0].Payload)
	require.Equal(t, b[0].Payload, out[2].Payload)
}
