// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package vectorindex

import (
	"strings"

	"github.com/ManuGH/sessionforge/internal/log"
	"golang.org/x/text/unicode/norm"
)

const (
	chunkSize    = 1000
	chunkOverlap = 100
	maxChunks    = 50
)

// Chunk splits text-bearing block content into overlapping chunks for index
// population: ~1,000 characters with ~100-character overlap, cutting
// preferentially at sentence terminators, then paragraph breaks, then
// whitespace. Callers concatenate block text with double-newline separators
// before calling Chunk. Output is capped at 50 chunks per session; exceeding
// that logs a warning and truncates rather than failing.
func Chunk(text string) []string {
	// Speech and vision backends don't agree on Unicode normalization form
	// for accented/combining characters; normalizing to NFC here keeps
	// embeddings for the same logical text stable regardless of which
	// backend produced it.
	runes := []rune(norm.NFC.String(text))
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + chunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = cutPoint(runes, start, end)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end >= len(runes) {
			break
		}
		next := end - chunkOverlap
		if next <= start {
			next = end
		}
		start = next

		if len(chunks) >= maxChunks {
			if strings.TrimSpace(string(runes[end:])) != "" {
				_lg := log.WithComponent("vectorindex")
				_lg.Warn().Int("chunks", len(chunks)).Msg("chunk count exceeds cap, truncating")
			}
			break
		}
	}
	return chunks
}

// cutPoint searches backward from end (bounded by start+chunkSize/2 to avoid
// degenerate tiny chunks) for the preferred cut point: sentence terminator,
// then paragraph break, then whitespace. Falls back to the hard boundary.
func cutPoint(runes []rune, start, end int) int {
	lowerBound := start + chunkSize/2
	if lowerBound < start {
		lowerBound = start
	}

	if i := lastIndexAny(runes, lowerBound, end, '.', '!', '?'); i >= 0 {
		return i + 1
	}
	if i := lastIndexRun(runes, lowerBound, end, '\n', '\n'); i >= 0 {
		return i
	}
	if i := lastIndexAny(runes, lowerBound, end, ' ', '\n', '\t'); i >= 0 {
		return i + 1
	}
	return end
}

func lastIndexAny(runes []rune, from, to int, targets ...rune) int {
	for i := to - 1; i >= from; i-- {
		for _, t := range targets {
			if runes[i] == t {
				return i
			}
		}
	}
	return -1
}

// lastIndexRun finds the last position of two consecutive matching runes
// (used to detect a paragraph break: "\n\n").
func lastIndexRun(runes []rune, from, to int, a, b rune) int {
	for i := to - 2; i >= from; i-- {
		if runes[i] == a && runes[i+1] == b {
			return i + 2
		}
	}
	return -1
}
