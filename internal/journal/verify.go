package journal

import (
	"bufio"
	"crypto/sha256"
	"fmt"
	"io"
	"os"

	"github.com/anand-gl/jsoncanonicalizer"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// DefaultMaxLineSize bounds a single journal line during verification.
const DefaultMaxLineSize = 1024 * 1024 // 1MB

// VerifyResult summarizes a successful verification pass.
type VerifyResult struct {
	Entries  int    // number of chained entries
	LastHash string // hash of the final entry, empty for an empty journal
}

// Verify checks the hash chain in r. Every entry's hash must equal the
// SHA-256 of its canonical form with the hash field removed, and every
// prev_hash must equal the hash of the preceding entry. maxLineSize bounds a
// single line; values <= 0 use DefaultMaxLineSize.
func Verify(r io.Reader, maxLineSize int) (*VerifyResult, error) {
	scanner := bufio.NewScanner(r)
	if maxLineSize <= 0 {
		maxLineSize = DefaultMaxLineSize
	}
	// The scanner's token cap is the larger of the initial buffer and the
	// max, so the initial buffer must not exceed the configured limit.
	initial := 64 * 1024
	if maxLineSize < initial {
		initial = maxLineSize
	}
	scanner.Buffer(make([]byte, 0, initial), maxLineSize)

	lineNum := 0
	expectedPrevHash := ""

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		if !gjson.Valid(line) {
			return nil, fmt.Errorf("line %d: invalid JSON", lineNum)
		}
		if !gjson.Get(line, "payload").IsObject() {
			return nil, fmt.Errorf("line %d: missing payload", lineNum)
		}
		hash := gjson.Get(line, "hash")
		if !hash.Exists() {
			return nil, fmt.Errorf("line %d: missing hash", lineNum)
		}

		// Verify hash chain
		if gjson.Get(line, "prev_hash").String() != expectedPrevHash {
			return nil, fmt.Errorf("line %d: prev_hash mismatch", lineNum)
		}

		// Verify hash
		base, err := sjson.Delete(line, "hash")
		if err != nil {
			return nil, fmt.Errorf("line %d: failed to strip hash: %w", lineNum, err)
		}
		canonical, err := jsoncanonicalizer.Transform([]byte(base))
		if err != nil {
			return nil, fmt.Errorf("line %d: failed to canonicalize: %w", lineNum, err)
		}
		computedHash := fmt.Sprintf("%x", sha256.Sum256(canonical))
		if hash.String() != computedHash {
			return nil, fmt.Errorf("line %d: hash mismatch", lineNum)
		}

		expectedPrevHash = hash.String()
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}

	return &VerifyResult{Entries: lineNum, LastHash: expectedPrevHash}, nil
}

// VerifyFile opens and verifies the journal at path.
func VerifyFile(path string, maxLineSize int) (*VerifyResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal file: %w", err)
	}
	defer f.Close()
	return Verify(f, maxLineSize)
}
