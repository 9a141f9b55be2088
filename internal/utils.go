package internal

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Eyevinn/mosh264/internal/media"
)

// ReadInput reads a whole input file, or stdin for "-".
func ReadInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading input %s: %w", path, err)
	}
	return data, nil
}

// WriteOutput writes data to a file, or stdout for "-".
func WriteOutput(path string, data []byte) error {
	if path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing output %s: %w", path, err)
	}
	return nil
}

// LoadElementaryStream reads an input and returns a raw Annex-B
// stream. MPEG-TS inputs are detected by sync-byte probing and demuxed
// natively; anything else is passed through as-is and left to the NAL
// demuxer to judge.
func LoadElementaryStream(ctx context.Context, path string) ([]byte, error) {
	data, err := ReadInput(path)
	if err != nil {
		return nil, err
	}
	if media.IsTransportStream(data) {
		es, err := media.ExtractAVC(ctx, bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("extracting AVC from TS %s: %w", path, err)
		}
		return es, nil
	}
	return data, nil
}

// RemoveFileIfExists removes a file, ignoring a missing one.
func RemoveFileIfExists(file string) error {
	if _, err := os.Stat(file); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return os.Remove(file)
}
