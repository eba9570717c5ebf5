package download

import (
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
)

// checksumVerifier enables checksum validation of the downloaded file.
type checksumVerifier struct {
	hash     hash.Hash
	expected string
}

func (v *checksumVerifier) Write(p []byte) (int, error) {
	return v.hash.Write(p)
}

// seed feeds the first n bytes of the partial file at path into the hash
// so a resumed download verifies the whole file.
func (v *checksumVerifier) seed(path string, n int64) error {
	if v == nil || n == 0 {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening partial file for checksum: %w", err)
	}
	defer f.Close()

	if _, err := io.CopyN(v.hash, f, n); err != nil {
		return fmt.Errorf("hashing partial file: %w", err)
	}

	return nil
}

func (v *checksumVerifier) Verify() error {
	if v == nil {
		return nil
	}

	actual := hex.EncodeToString(v.hash.Sum(nil))
	if actual != v.expected {
		return &Error{
			Err:    ErrChecksumMismatch,
			Detail: fmt.Sprintf("expected %s, got %s", v.expected, actual),
		}
	}

	return nil
}
