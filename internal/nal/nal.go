// Package nal splits Annex-B H.264 byte streams into NAL units,
// classifies them by frame role, and serializes them back.
package nal

import (
	"errors"

	"github.com/Eyevinn/mp4ff/avc"
)

// ErrMalformedStream is returned when a non-empty buffer contains no
// Annex-B start code.
var ErrMalformedStream = errors.New("malformed stream: no start code found")

// Role is the frame role a NAL unit plays in the mutation pipeline.
type Role int

const (
	RoleOther Role = iota
	RoleParameterSet
	RoleKeyframe
	RoleInterFrame
)

func (r Role) String() string {
	switch r {
	case RoleParameterSet:
		return "PS"
	case RoleKeyframe:
		return "I"
	case RoleInterFrame:
		return "P"
	default:
		return "other"
	}
}

// Unit is one NAL unit without its start code. Payload starts with the
// NAL header byte and keeps emulation prevention bytes verbatim, since
// this layer works on Annex-B framing and not RBSP.
type Unit struct {
	Type    avc.NaluType
	Payload []byte
	// startCodeLen is the start-code width (3 or 4) observed when the
	// unit was demuxed. Serialization always writes 4-byte codes.
	startCodeLen int
}

// Role classifies the unit from its NALU type. Non-IDR slices are all
// treated as P-frames, B-slices included. That approximation is good
// enough for datamoshing and avoids full slice-header parsing.
func (u Unit) Role() Role {
	switch u.Type {
	case avc.NALU_SPS, avc.NALU_PPS:
		return RoleParameterSet
	case avc.NALU_IDR:
		return RoleKeyframe
	case avc.NALU_NON_IDR:
		return RoleInterFrame
	default:
		return RoleOther
	}
}

// IsFrame reports whether the unit carries picture data.
func (u Unit) IsFrame() bool {
	r := u.Role()
	return r == RoleKeyframe || r == RoleInterFrame
}

// StartCodeLen returns the start-code width observed at demux time.
func (u Unit) StartCodeLen() int {
	return u.startCodeLen
}

// SliceType reads the slice type from the first payload bytes of a
// slice unit. Heuristic only: emulation prevention bytes in the first
// few header bytes can make it fail on rare streams.
func (u Unit) SliceType() (avc.SliceType, bool) {
	if u.Type != avc.NALU_NON_IDR && u.Type != avc.NALU_IDR {
		return 0, false
	}
	st, err := avc.GetSliceTypeFromNALU(u.Payload)
	if err != nil {
		return 0, false
	}
	return st, true
}

// Clone returns a unit with its own copy of the payload bytes.
func (u Unit) Clone() Unit {
	payload := make([]byte, len(u.Payload))
	copy(payload, u.Payload)
	return Unit{Type: u.Type, Payload: payload, startCodeLen: u.startCodeLen}
}

// Sequence is an ordered list of NAL units. Order is the sole carrier
// of decoding order at this layer.
type Sequence []Unit

var startCode = []byte{0x00, 0x00, 0x00, 0x01}

// Demux scans data for 3- and 4-byte start codes and returns the NAL
// units in stream order. Bytes before the first start code are ignored.
// A non-empty buffer without any start code yields ErrMalformedStream.
func Demux(data []byte) (Sequence, error) {
	if len(data) == 0 {
		return Sequence{}, nil
	}
	type mark struct {
		payloadStart int
		scLen        int
	}
	var marks []mark
	for i := 0; i+2 < len(data); {
		if data[i+2] > 1 {
			// No start code can cover this byte
			i += 3
			continue
		}
		if data[i+2] == 1 && data[i+1] == 0 && data[i] == 0 {
			scLen := 3
			if i > 0 && data[i-1] == 0 {
				scLen = 4
			}
			marks = append(marks, mark{payloadStart: i + 3, scLen: scLen})
			i += 3
			continue
		}
		i++
	}
	if len(marks) == 0 {
		return nil, ErrMalformedStream
	}

	seq := make(Sequence, 0, len(marks))
	for k, m := range marks {
		end := len(data)
		if k+1 < len(marks) {
			end = marks[k+1].payloadStart - marks[k+1].scLen
		}
		payload := data[m.payloadStart:end]
		if len(payload) == 0 {
			// Start code at buffer end or doubled start code
			continue
		}
		seq = append(seq, Unit{
			Type:         avc.GetNaluType(payload[0]),
			Payload:      payload,
			startCodeLen: m.scLen,
		})
	}
	if len(seq) == 0 {
		return nil, ErrMalformedStream
	}
	return seq, nil
}

// Bytes serializes the sequence with a 4-byte start code per unit,
// regardless of the width observed at demux time. Payloads are written
// verbatim.
func (s Sequence) Bytes() []byte {
	n := 0
	for _, u := range s {
		n += len(startCode) + len(u.Payload)
	}
	out := make([]byte, 0, n)
	for _, u := range s {
		out = append(out, startCode...)
		out = append(out, u.Payload...)
	}
	return out
}

// CountRole returns the number of units with the given role.
func (s Sequence) CountRole(r Role) int {
	n := 0
	for _, u := range s {
		if u.Role() == r {
			n++
		}
	}
	return n
}

// CountFrames returns the number of frame-bearing units.
func (s Sequence) CountFrames() int {
	return s.CountRole(RoleKeyframe) + s.CountRole(RoleInterFrame)
}
