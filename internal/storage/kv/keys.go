package kv

import (
	"encoding/binary"
	"strings"
)

// Key layout. Components are joined with a NUL byte so ids may contain ':' or '/'.
const (
	paperPrefix    = "paper"
	chunkPrefix    = "chunk"
	authorPrefix   = "author"
	authoredPrefix = "authored" // authored/<author_id>/<paper_id>
	citesPrefix    = "cites"    // cites/<paper_id>/<cited_id>
	citedByPrefix  = "citedby"  // citedby/<cited_id>/<paper_id>
	sep            = "\x00"
)

func key(parts ...string) []byte {
	return []byte(strings.Join(parts, sep))
}

func prefix(parts ...string) []byte {
	return []byte(strings.Join(parts, sep) + sep)
}

func paperKey(paperID string) []byte { return key(paperPrefix, paperID) }

func authorKey(authorID string) []byte { return key(authorPrefix, authorID) }

// chunkKey encodes the index big-endian so chunks of a paper iterate in document order.
func chunkKey(paperID string, index int) []byte {
	p := prefix(chunkPrefix, paperID)
	buf := make([]byte, len(p)+8)
	n := copy(buf, p)
	binary.BigEndian.PutUint64(buf[n:], uint64(index))
	return buf
}

// lastPart returns the key component after the given prefix.
func lastPart(k, p []byte) string {
	return string(k[len(p):])
}
