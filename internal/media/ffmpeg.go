// Package media holds the external collaborators around the mosh
// core: ffmpeg invocation with fixed argument templates, and native
// MPEG-TS elementary-stream extraction.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// ToolError reports a failed external tool run. It is a distinct
// category from the core bitstream errors: a missing binary or a
// non-zero exit lands here, never in the mosh pipeline.
type ToolError struct {
	Cmd    string
	Stderr string
	Err    error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("external tool failed: %s: %v", e.Cmd, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// Transcoder extracts raw Annex-B streams from containers and remuxes
// them back. Implemented by FFmpeg; test code substitutes a stub.
type Transcoder interface {
	ExtractRawStream(ctx context.Context, inPath, outPath string) error
	RemuxToMP4(ctx context.Context, inPath, outPath string) error
}

// FFmpeg runs the ffmpeg binary with fixed argument templates.
type FFmpeg struct {
	Path string
	Log  *logrus.Logger
}

// NewFFmpeg returns a runner for the given binary path, or "ffmpeg"
// from PATH when empty.
func NewFFmpeg(path string, log *logrus.Logger) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	if log == nil {
		log = logrus.New()
	}
	return &FFmpeg{Path: path, Log: log}
}

// ExtractRawStream copies the video track of a container file into a
// raw Annex-B H.264 stream.
func (f *FFmpeg) ExtractRawStream(ctx context.Context, inPath, outPath string) error {
	return f.run(ctx,
		"-y", "-i", inPath,
		"-c:v", "copy", "-bsf:v", "h264_mp4toannexb", outPath)
}

// RemuxToMP4 re-encodes a raw (and deliberately broken) Annex-B stream
// into a playable MP4. Re-encoding bakes the moshing artifacts into
// clean frames; genpts and ignore_err let ffmpeg push through the
// non-conformant input.
func (f *FFmpeg) RemuxToMP4(ctx context.Context, inPath, outPath string) error {
	return f.run(ctx,
		"-y", "-fflags", "+genpts", "-err_detect", "ignore_err", "-i", inPath,
		"-c:v", "libx264", "-crf", "18", "-preset", "fast",
		"-movflags", "faststart", outPath)
}

func (f *FFmpeg) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, f.Path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	f.Log.WithField("cmd", f.Path+" "+strings.Join(args, " ")).Debug("running external tool")
	if err := cmd.Run(); err != nil {
		return &ToolError{
			Cmd:    f.Path + " " + strings.Join(args, " "),
			Stderr: stderr.String(),
			Err:    err,
		}
	}
	return nil
}
