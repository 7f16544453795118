// Package chunker splits over-long content into bounded, overlapping segments.
package chunker

import "strings"

const (
	// DefaultMaxSize is the maximum chunk length in characters.
	DefaultMaxSize = 1500
	// DefaultOverlapWords is the word-level overlap carried between chunks.
	DefaultOverlapWords = 40

	// splitFactor controls the trigger: content longer than
	// splitFactor*MaxSize is chunked, anything shorter stays whole.
	splitFactor = 1.5
)

// Options configures chunking behavior.
type Options struct {
	MaxSize      int
	OverlapWords int
}

// DefaultOptions returns default chunking options.
func DefaultOptions() Options {
	return Options{
		MaxSize:      DefaultMaxSize,
		OverlapWords: DefaultOverlapWords,
	}
}

// NeedsSplit reports whether text exceeds the chunking trigger.
func NeedsSplit(text string, opts Options) bool {
	return len(strings.TrimSpace(text)) > int(float64(opts.MaxSize)*splitFactor)
}

// Split segments text on paragraph boundaries, accumulating paragraphs until
// the next would exceed MaxSize. Each new chunk is seeded with the tail words
// of the previous one for continuity. A single paragraph longer than twice
// MaxSize is further split on sentence boundaries. Text at or below the
// trigger comes back as a single segment.
func Split(text string, opts Options) []string {
	if opts.MaxSize <= 0 {
		opts = DefaultOptions()
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if !NeedsSplit(text, opts) {
		return []string{text}
	}

	// Oversized paragraphs become sentence-accumulated pieces first, so the
	// main loop only ever sees units that fit in roughly one chunk.
	var units []string
	for _, p := range splitParagraphs(text) {
		if len(p) > 2*opts.MaxSize {
			units = append(units, accumulate(splitSentences(p), " ", opts.MaxSize)...)
		} else {
			units = append(units, p)
		}
	}

	var chunks []string
	var current string
	for _, u := range units {
		if current == "" {
			current = u
			continue
		}
		if len(current)+2+len(u) > opts.MaxSize {
			chunks = append(chunks, current)
			if tail := tailWords(current, opts.OverlapWords); tail != "" {
				current = tail + "\n\n" + u
			} else {
				current = u
			}
			continue
		}
		current += "\n\n" + u
	}
	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, current)
	}

	return chunks
}

// splitParagraphs splits on blank-line boundaries.
func splitParagraphs(text string) []string {
	var paragraphs []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

// splitSentences splits a paragraph after sentence-ending punctuation.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if i+1 == len(text) || text[i+1] == ' ' || text[i+1] == '\n' {
				s := strings.TrimSpace(text[start : i+1])
				if s != "" {
					sentences = append(sentences, s)
				}
				start = i + 1
			}
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// accumulate joins units until adding the next would exceed maxSize.
func accumulate(units []string, sep string, maxSize int) []string {
	var out []string
	var current string
	for _, u := range units {
		if current == "" {
			current = u
			continue
		}
		if len(current)+len(sep)+len(u) > maxSize {
			out = append(out, current)
			current = u
			continue
		}
		current += sep + u
	}
	if current != "" {
		out = append(out, current)
	}
	return out
}

// tailWords returns the last n words of text.
func tailWords(text string, n int) string {
	if n <= 0 {
		return ""
	}
	words := strings.Fields(text)
	if len(words) <= n {
		return text
	}
	return strings.Join(words[len(words)-n:], " ")
}
