package util

import (
	"errors"
	"fmt"
)

var ErrInvalidChunkConfig = errors.New("invalid chunk config")

// Segment is one chunk with its rune offsets into the source text.
type Segment struct {
	Index int
	Start int
	End   int
	Text  string
}

// Chunker splits text into overlapping windows of Size runes, preferring to cut just after
// sentence-terminal punctuation found in the last fifth of a window.
type Chunker struct {
	size    int
	overlap int
}

func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size must be positive, got %d", ErrInvalidChunkConfig, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap must be in [0, %d), got %d", ErrInvalidChunkConfig, size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

func (c *Chunker) Split(text string) []string {
	segs := c.Segments(text)
	out := make([]string, 0, len(segs))
	for _, s := range segs {
		out = append(out, s.Text)
	}
	return out
}

func (c *Chunker) Segments(text string) []Segment {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}
	out := make([]Segment, 0, n/(c.size-c.overlap)+1)
	emit := func(start, end int) {
		out = append(out, Segment{Index: len(out), Start: start, End: end, Text: string(runes[start:end])})
	}

	start := 0
	for {
		end := start + c.size
		if end >= n {
			emit(start, n)
			break
		}
		cut := c.cutPoint(runes, start, end)
		// a remainder shorter than the overlap would only repeat text; fold it in
		if n-cut < c.overlap {
			emit(start, n)
			break
		}
		emit(start, cut)
		next := cut - c.overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return out
}

func (c *Chunker) cutPoint(runes []rune, start, end int) int {
	lookback := c.size / 5
	if lookback < 1 {
		lookback = 1
	}
	for i := end - 1; i >= end-lookback && i > start; i-- {
		if isSentenceEnd(runes[i]) {
			return i + 1
		}
	}
	return end
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}
