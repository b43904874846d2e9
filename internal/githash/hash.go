// Package githash computes git object identifiers for in-memory content.
package githash

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
)

// BlobSHA returns the canonical git blob id for the given bytes: the SHA-1 of
// "blob <decimal length>\x00" followed by the raw content, hex-encoded lowercase.
// This matches the ids GitHub assigns when a blob is created through the API, so
// a locally computed hash can be compared against remote object ids directly.
func BlobSHA(content []byte) string {
	h := sha1.New()
	h.Write([]byte("blob "))
	h.Write([]byte(strconv.Itoa(len(content))))
	h.Write([]byte{0})
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}
