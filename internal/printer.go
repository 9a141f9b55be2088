package internal

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Eyevinn/mosh264/internal/nal"
)

type JsonPrinter struct {
	W        io.Writer
	Indent   bool
	AccError error
}

func (p *JsonPrinter) Print(data any, show bool) {
	if !show {
		return
	}
	var out []byte
	var err error
	if p.AccError != nil {
		return
	}
	if p.Indent {
		out, err = json.MarshalIndent(data, "", "  ")
	} else {
		out, err = json.Marshal(data)
	}
	if err != nil {
		p.AccError = err
		return
	}
	_, p.AccError = fmt.Fprintln(p.W, string(out))
}

func (p *JsonPrinter) Error() error {
	return p.AccError
}

type NaluInfo struct {
	Index     int    `json:"index"`
	Type      string `json:"type"`
	Role      string `json:"role"`
	SliceType string `json:"sliceType,omitempty"`
	Len       int    `json:"len"`
}

type StreamSummary struct {
	Units         int     `json:"units"`
	ParameterSets int     `json:"parameterSets"`
	Keyframes     int     `json:"keyframes"`
	InterFrames   int     `json:"interFrames"`
	Other         int     `json:"other"`
	FrameRate     float64 `json:"frameRate"`
}

// PrintNalus lists every unit of a sequence as one JSON line.
func (p *JsonPrinter) PrintNalus(seq nal.Sequence, show bool) {
	for i, u := range seq {
		info := NaluInfo{
			Index: i,
			Type:  u.Type.String(),
			Role:  u.Role().String(),
			Len:   len(u.Payload),
		}
		if st, ok := u.SliceType(); ok {
			info.SliceType = st.String()
		}
		p.Print(info, show)
	}
}

// PrintSummary reports per-role unit counts and the estimated frame
// rate of a sequence.
func (p *JsonPrinter) PrintSummary(seq nal.Sequence, show bool) {
	s := StreamSummary{
		Units:         len(seq),
		ParameterSets: seq.CountRole(nal.RoleParameterSet),
		Keyframes:     seq.CountRole(nal.RoleKeyframe),
		InterFrames:   seq.CountRole(nal.RoleInterFrame),
		FrameRate:     seq.FrameRate(),
	}
	s.Other = s.Units - s.ParameterSets - s.Keyframes - s.InterFrames
	p.Print(s, show)
}
