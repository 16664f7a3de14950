package journal

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/golang/snappy"
)

// isSnappyFramed checks for the standard Snappy framed stream header.
func isSnappyFramed(data []byte) bool {
	return len(data) >= 10 && bytes.HasPrefix(data, []byte{0xff, 0x06, 0x00, 0x00, 's', 'N', 'a', 'P', 'p', 'Y'})
}

// EncodeFile reads the journal at path and returns it base64 encoded,
// Snappy compressing first when compress is set.
func EncodeFile(path string, compress bool) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open journal file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	b64Encoder := base64.NewEncoder(base64.StdEncoding, &buf)

	if compress {
		snappyWriter := snappy.NewBufferedWriter(b64Encoder)
		if _, err := io.Copy(snappyWriter, f); err != nil {
			return "", fmt.Errorf("compression failed: %w", err)
		}
		if err := snappyWriter.Close(); err != nil {
			return "", fmt.Errorf("snappy close failed: %w", err)
		}
	} else {
		if _, err := io.Copy(b64Encoder, f); err != nil {
			return "", fmt.Errorf("encoding failed: %w", err)
		}
	}

	if err := b64Encoder.Close(); err != nil {
		return "", fmt.Errorf("base64 close failed: %w", err)
	}
	return buf.String(), nil
}

// DecodeToFile decodes a base64-encoded journal and writes it to path,
// transparently uncompressing Snappy framed data. The write goes through a
// temporary file and a rename so a partial decode never replaces a journal.
func DecodeToFile(encoded string, path string) error {
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("base64 decode failed: %w", err)
	}
	if len(decoded) == 0 {
		return errors.New("journal is empty after base64 decode")
	}

	var src io.Reader = bytes.NewReader(decoded)
	if isSnappyFramed(decoded) {
		src = snappy.NewReader(bytes.NewReader(decoded))
	}

	// Write to a temporary file first
	tmpPath := path + ".tmp"
	outFile, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer outFile.Close()

	if _, err := io.Copy(outFile, src); err != nil {
		return fmt.Errorf("decode failed: %w", err)
	}

	// Atomically move temp file to final path
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename to final path failed: %w", err)
	}

	return nil
}
