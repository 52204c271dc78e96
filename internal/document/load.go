package document

import (
	"strings"

	"github.com/krishraghuram/dmerk/internal/merkle"
)

// LoadAny dispatches to the decoder matching path's extension:
// .dmerk.msgpack for the binary format, .dmerk.yaml for the
// human-readable format, and the primary JSON format otherwise
// (including the conventional .dmerk extension).
func LoadAny(path string) (*merkle.Node, error) {
	switch {
	case strings.HasSuffix(path, extMsgpack):
		return LoadMsgpack(path)
	case strings.HasSuffix(path, extYAML):
		return LoadYAML(path)
	default:
		return Load(path)
	}
}
