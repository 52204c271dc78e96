package merkle

import (
	"crypto/md5" //nolint:gosec // content fingerprint, not a security signature; see spec Non-goals
	"encoding/hex"
	"io"
)

const (
	// DigestAlgorithm names the single build-time hashing constant used
	// throughout dmerk. It is never stored per-node or per-tree:
	// documents produced with a different algorithm are not
	// interoperable, by design (see DESIGN.md).
	DigestAlgorithm = "md5"

	// DigestHexSize is the width in hex characters of a digest produced
	// by HashBytes/HashString (128 bits = 32 hex characters).
	DigestHexSize = md5.Size * 2
)

// HashBytes consumes r to completion and returns its digest as a
// lowercase hex string. I/O errors are propagated unchanged.
func HashBytes(r io.Reader) (string, error) {
	h := md5.New() //nolint:gosec
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytesBuffered behaves like HashBytes but reads through buf
// instead of letting io.Copy allocate its own, so a caller hashing
// many files can reuse one buffer across calls.
func HashBytesBuffered(r io.Reader, buf []byte) (string, error) {
	h := md5.New() //nolint:gosec
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashString returns the digest of a UTF-8 encoded string.
func HashString(s string) string {
	h := md5.New() //nolint:gosec
	_, _ = io.WriteString(h, s)
	return hex.EncodeToString(h.Sum(nil))
}
