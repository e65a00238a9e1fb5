// Package segment splits extracted document text into overlapping word windows.
package segment

import (
	"strings"
	"unicode"
)

const (
	// MinTextLength is the cleaned length below which text is kept as a single segment.
	MinTextLength = 100
	// MinSegmentLength is the length below which a window is dropped.
	MinSegmentLength = 10
)

// Band maps a document word count to window parameters.
type Band struct {
	MaxWords int // 0 = unbounded
	Size     int
	Overlap  int
}

var bands = []Band{
	{MaxWords: 1000, Size: 250, Overlap: 50},
	{MaxWords: 5000, Size: 500, Overlap: 100},
	{MaxWords: 20000, Size: 1000, Overlap: 150},
	{MaxWords: 0, Size: 1500, Overlap: 200},
}

// Params returns window size and overlap (in words) for a document of wordCount words.
func Params(wordCount int) (size, overlap int) {
	for _, b := range bands {
		if b.MaxWords == 0 || wordCount <= b.MaxWords {
			return b.Size, b.Overlap
		}
	}
	last := bands[len(bands)-1]
	return last.Size, last.Overlap
}

type options struct {
	size       int
	overlap    int
	hasOverlap bool
}

// Option overrides the band-derived window parameters.
type Option func(*options)

// WithSize fixes the window size in words. Non-positive values are ignored.
func WithSize(words int) Option {
	return func(o *options) {
		if words > 0 {
			o.size = words
		}
	}
}

// WithOverlap fixes the overlap in words.
func WithOverlap(words int) Option {
	return func(o *options) {
		if words >= 0 {
			o.overlap = words
			o.hasOverlap = true
		}
	}
}

// Split cleans text and cuts it into overlapping windows.
// Returns nil only for text that is empty after cleaning.
func Split(text string, opts ...Option) []string {
	cleaned := Clean(text)
	if cleaned == "" {
		return nil
	}
	if len(cleaned) < MinTextLength {
		return []string{cleaned}
	}

	words := strings.Fields(cleaned)
	size, overlap := Params(len(words))

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.size > 0 {
		size = o.size
	}
	if o.hasOverlap {
		overlap = o.overlap
	}
	if overlap >= size {
		overlap = size / 5
	}
	step := size - overlap

	var out []string
	for start := 0; start < len(words); start += step {
		end := min(start+size, len(words))
		seg := strings.Join(words[start:end], " ")
		if len(seg) >= MinSegmentLength {
			out = append(out, seg)
		}
		if end == len(words) {
			break
		}
	}

	if len(out) == 0 {
		return []string{cleaned}
	}
	return out
}

var typography = strings.NewReplacer(
	"“", `"`, "”", `"`, "„", `"`, "«", `"`, "»", `"`,
	"‘", "'", "’", "'", "‚", "'",
	"•", "-", "◦", "-", "▪", "-", "●", "-",
	"→", "-", "➔", "-", "➤", "-",
	"–", "-", "—", "-",
	"…", "...",
)

// Clean normalizes typography, drops characters outside printable ASCII and collapses whitespace.
func Clean(text string) string {
	text = typography.Replace(text)

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		case r >= 0x20 && r < 0x7f:
			b.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// WordCount returns the number of whitespace-separated words in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
