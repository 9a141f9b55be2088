package media

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/Comcast/gots/v2/packet"
	"github.com/asticode/go-astits"
)

const tsPacketSize = 188

// IsTransportStream probes whether a buffer looks like MPEG-TS rather
// than a raw Annex-B stream, by syncing on 0x47 and requiring a second
// aligned sync byte one packet later.
func IsTransportStream(data []byte) bool {
	if len(data) < 2*tsPacketSize {
		return false
	}
	r := bufio.NewReader(bytes.NewReader(data))
	off, err := packet.Sync(r)
	if err != nil {
		return false
	}
	i := int(off)
	return i+tsPacketSize < len(data) && data[i+tsPacketSize] == 0x47
}

// ExtractAVC demuxes an MPEG-TS stream and concatenates the PES data
// of its first H.264 elementary stream. PES payloads for AVC in TS are
// already Annex-B framed, so the result feeds the mosh core directly.
func ExtractAVC(ctx context.Context, r io.Reader) ([]byte, error) {
	rd := bufio.NewReaderSize(r, 1000*tsPacketSize)
	dmx := astits.NewDemuxer(ctx, rd)
	videoPID := uint16(0)
	var buf bytes.Buffer
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		d, err := dmx.NextData()
		if err != nil {
			if err.Error() == "astits: no more packets" {
				break
			}
			return nil, fmt.Errorf("reading next data %w", err)
		}

		if videoPID == 0 && d.PMT != nil {
			for _, es := range d.PMT.ElementaryStreams {
				if es.StreamType == astits.StreamTypeH264Video {
					videoPID = es.ElementaryPID
					break
				}
			}
		}
		if d.PES != nil && videoPID != 0 && d.PID == videoPID {
			buf.Write(d.PES.Data)
		}
	}
	if buf.Len() == 0 {
		return nil, fmt.Errorf("no AVC elementary stream found in TS")
	}
	return buf.Bytes(), nil
}
