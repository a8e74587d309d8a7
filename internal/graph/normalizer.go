package graph

import (
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-crypt/x/blake2b"
)

var ws = regexp.MustCompile(`\s+`)

func CanonicalName(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.ReplaceAll(s, "_", " ")
	s = ws.ReplaceAllString(s, " ")
	return s
}

// AuthorID derives a stable author identifier from the canonical form of name, so the same
// person listed on two papers maps to one Author node.
func AuthorID(name string) string {
	h, _ := blake2b.New(8, nil)
	h.Write([]byte(CanonicalName(name)))
	return "author_" + hex.EncodeToString(h.Sum(nil))
}

func ChunkID(paperID string, index int) string {
	return paperID + "_chunk_" + strconv.Itoa(index)
}

// NormalizeEntities trims entities and drops blanks and case-insensitive duplicates,
// keeping the first spelling seen.
func NormalizeEntities(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, e := range in {
		e = ws.ReplaceAllString(strings.TrimSpace(e), " ")
		if e == "" {
			continue
		}
		k := strings.ToLower(e)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, e)
	}
	return out
}
