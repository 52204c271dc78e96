package merkle

import "errors"

// Sentinel errors identifying the failure kinds produced by the core.
// Callers should test for these with errors.Is rather than matching
// on message text.
var (
	// ErrNotADirectory is returned by the Generator when the requested
	// root path does not exist or is not a directory.
	ErrNotADirectory = errors.New("merkle: root path does not exist or is not a directory")

	// ErrInvalidEntry is returned by the Generator when it encounters
	// an entry that is neither a file, a directory, nor a symlink
	// (devices, FIFOs, sockets) and ContinueOnError is not set.
	ErrInvalidEntry = errors.New("merkle: entry is neither file, directory, nor symlink")

	// ErrIoError wraps permission or read failures encountered while
	// walking a subtree when ContinueOnError is not set.
	ErrIoError = errors.New("merkle: io error while walking subtree")

	// ErrMalformedDocument is returned by the document decoder when
	// the on-disk representation is missing its node sentinel, carries
	// an unknown kind tag, or otherwise fails to parse.
	ErrMalformedDocument = errors.New("merkle: not a valid dmerk document")

	// ErrNotFound is returned by Traverse when no descendant matches
	// the requested sub-path.
	ErrNotFound = errors.New("merkle: no sub-node found for path")
)
