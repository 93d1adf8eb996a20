package service

import (
	"strings"
	"unicode"
)

// ChunkConfig controls text segmentation for knowledge embeddings.
type ChunkConfig struct {
	MaxSize int
	Overlap int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxSize: 1000,
		Overlap: 100,
	}
}

// ChunkText splits text into overlapping segments of at most cfg.MaxSize
// characters. Cuts prefer a paragraph break, then a sentence break, then
// whitespace, but a boundary is only taken when it lies in the second half
// of the window; otherwise the naive cut is kept.
func ChunkText(text string, cfg ChunkConfig) []string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}
	if cfg.MaxSize <= 0 {
		cfg = DefaultChunkConfig()
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = 0
	}
	// Overlap must stay below MaxSize or the cursor never advances.
	if cfg.Overlap >= cfg.MaxSize {
		cfg.Overlap = cfg.MaxSize - 1
	}

	runes := []rune(clean)
	if len(runes) <= cfg.MaxSize {
		return []string{clean}
	}

	chunks := make([]string, 0, 8)
	cursor := 0
	for cursor < len(runes) {
		end := cursor + cfg.MaxSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = adjustCut(runes, cursor, end, cfg.MaxSize)
		}

		chunk := strings.TrimSpace(string(runes[cursor:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end >= len(runes) {
			break
		}

		next := end - cfg.Overlap
		if next <= cursor {
			next = end
		}
		cursor = next
	}

	return chunks
}

// adjustCut moves the cut point from the naive position back to the nearest
// natural boundary, provided that boundary is past the middle of the window.
func adjustCut(runes []rune, cursor, end, maxSize int) int {
	minCut := cursor + maxSize/2

	if idx := lastPattern(runes, cursor, end, []rune{'\n', '\n'}); idx > minCut {
		return idx
	}
	if idx := lastPattern(runes, cursor, end, []rune{'.', ' '}); idx > minCut {
		return idx + 1
	}
	for i := end - 1; i > minCut; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return end
}

// lastPattern returns the highest index in [from, to) where pattern starts,
// or -1 when it does not occur.
func lastPattern(runes []rune, from, to int, pattern []rune) int {
	for i := to - len(pattern); i >= from; i-- {
		match := true
		for j, p := range pattern {
			if runes[i+j] != p {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
