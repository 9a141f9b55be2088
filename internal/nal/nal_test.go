package nal

import (
	"testing"

	"github.com/Eyevinn/mp4ff/avc"
	"github.com/stretchr/testify/require"
)

// annexB builds a stream with a 4-byte start code before each payload.
func annexB(payloads ...[]byte) []byte {
	var out []byte
	for _, p := range payloads {
		out = append(out, 0x00, 0x00, 0x00, 0x01)
		out = append(out, p...)
	}
	return out
}

func TestDemux(t *testing.T) {
	sps := []byte{0x67, 0xAA, 0xBB}
	pps := []byte{0x68, 0xCC}
	idr := []byte{0x65, 0x11, 0x22, 0x33}
	p := []byte{0x41, 0x44, 0x55}

	seq, err := Demux(annexB(sps, pps, idr, p))
	require.NoError(t, err)
	require.Len(t, seq, 4)
	require.Equal(t, avc.NALU_SPS, seq[0].Type)
	require.Equal(t, avc.NALU_PPS, seq[1].Type)
	require.Equal(t, avc.NALU_IDR, seq[2].Type)
	require.Equal(t, avc.NALU_NON_IDR, seq[3].Type)
	require.Equal(t, idr, seq[2].Payload)
	for _, u := range seq {
		require.Equal(t, 4, u.StartCodeLen())
	}
}

func TestDemuxShortStartCodes(t *testing.T) {
	// 3-byte start codes mixed with a 4-byte one
	data := []byte{
		0x00, 0x00, 0x01, 0x67, 0xAA,
		0x00, 0x00, 0x01, 0x41, 0xBB, 0xCC,
		0x00, 0x00, 0x00, 0x01, 0x65, 0xDD,
	}
	seq, err := Demux(data)
	require.NoError(t, err)
	require.Len(t, seq, 3)
	require.Equal(t, 3, seq[0].StartCodeLen())
	require.Equal(t, 3, seq[1].StartCodeLen())
	require.Equal(t, 4, seq[2].StartCodeLen())
	require.Equal(t, []byte{0x41, 0xBB, 0xCC}, seq[1].Payload)
	require.Equal(t, []byte{0x65, 0xDD}, seq[2].Payload)
}

func TestDemuxLeadingGarbage(t *testing.T) {
	data := append([]byte{0xDE, 0xAD}, annexB([]byte{0x65, 0x01})...)
	seq, err := Demux(data)
	require.NoError(t, err)
	require.Len(t, seq, 1)
	require.Equal(t, avc.NALU_IDR, seq[0].Type)
}

func TestDemuxMalformed(t *testing.T) {
	_, err := Demux([]byte{0x12, 0x34, 0x56, 0x78})
	require.ErrorIs(t, err, ErrMalformedStream)

	// Start code with nothing after it
	_, err = Demux([]byte{0x00, 0x00, 0x00, 0x01})
	require.ErrorIs(t, err, ErrMalformedStream)
}

func TestDemuxEmpty(t *testing.T) {
	seq, err := Demux(nil)
	require.NoError(t, err)
	require.Empty(t, seq)
}

func TestBytesNormalizesStartCodes(t *testing.T) {
	data := []byte{
		0x00, 0x00, 0x01, 0x67, 0xAA,
		0x00, 0x00, 0x01, 0x41, 0xBB,
	}
	seq, err := Demux(data)
	require.NoError(t, err)
	out := seq.Bytes()
	require.Equal(t, annexB([]byte{0x67, 0xAA}, []byte{0x41, 0xBB}), out)

	n := 0
	for _, u := range seq {
		n += 4 + len(u.Payload)
	}
	require.Equal(t, n, len(out))
}

func TestRoles(t *testing.T) {
	cases := []struct {
		header  byte
		role    Role
		isFrame bool
	}{
		{0x67, RoleParameterSet, false},
		{0x68, RoleParameterSet, false},
		{0x65, RoleKeyframe, true},
		{0x41, RoleInterFrame, true},
		{0x06, RoleOther, false}, // SEI
		{0x09, RoleOther, false}, // AUD
	}
	for _, c := range cases {
		u := Unit{Type: avc.GetNaluType(c.header), Payload: []byte{c.header}}
		require.Equal(t, c.role, u.Role(), "header 0x%02x", c.header)
		require.Equal(t, c.isFrame, u.IsFrame(), "header 0x%02x", c.header)
	}
}

func TestSliceType(t *testing.T) {
	// first_mb_in_slice=0, slice_type=0 (P)
	u := Unit{Type: avc.NALU_NON_IDR, Payload: []byte{0x41, 0xC0, 0x00, 0x00}}
	st, ok := u.SliceType()
	require.True(t, ok)
	require.Equal(t, "P", st.String())

	sei := Unit{Type: avc.GetNaluType(0x06), Payload: []byte{0x06, 0x00}}
	_, ok = sei.SliceType()
	require.False(t, ok)
}

func TestCloneIsIndependent(t *testing.T) {
	u := Unit{Type: avc.NALU_NON_IDR, Payload: []byte{0x41, 0x01, 0x02}}
	c := u.Clone()
	require.Equal(t, u.Payload, c.Payload)
	c.Payload[1] = 0xFF
	require.Equal(t, byte(0x01), u.Payload[1])
}

func TestCounts(t *testing.T) {
	seq, err := Demux(annexB(
		[]byte{0x67, 0x01}, []byte{0x68, 0x01},
		[]byte{0x65, 0x01}, []byte{0x41, 0x01}, []byte{0x41, 0x02},
	))
	require.NoError(t, err)
	require.Equal(t, 2, seq.CountRole(RoleParameterSet))
	require.Equal(t, 1, seq.CountRole(RoleKeyframe))
	require.Equal(t, 2, seq.CountRole(RoleInterFrame))
	require.Equal(t, 3, seq.CountFrames())
}

func TestFrameRateFallback(t *testing.T) {
	// No parsable SPS timing info in the stream
	seq, err := Demux(annexB([]byte{0x65, 0x01}, []byte{0x41, 0x01}))
	require.NoError(t, err)
	require.Equal(t, DefaultFrameRate, seq.FrameRate())
}
