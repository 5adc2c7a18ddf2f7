// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package vectorindex

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestChunkEmptyText(t *testing.T) {
	require.Nil(t, Chunk(""))
}

func TestChunkShortTextIsOneChunk(t *testing.T) {
	chunks := Chunk("a short block of text.")
	require.Len(t, chunks, 1)
}

func TestChunkLongTextSplitsWithOverlap(t *testing.T) {
	sentence := "This is a sentence that repeats to build up length. "
	text := strings.Repeat(sentence, 60) // well over 1,000 chars
	chunks := Chunk(text)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		require.LessOrEqual(t, len([]rune(c)), chunkSize)
	}
	// The second chunk starts inside the overlap window at the end of the first.
	require.Contains(t, chunks[0], string([]rune(chunks[1])[:chunkOverlap/2]))
}

func TestChunkCapsAt50Chunks(t *testing.T) {
	// No sentence/paragraph/whitespace boundaries at all: forces hard cuts.
	text := strings.Repeat("a", chunkSize*200)
	chunks := Chunk(text)
	require.LessOrEqual(t, len(chunks), maxChunks)
}

func TestChunkNormalizesToNFC(t *testing.T) {
	// "e" + combining acute accent (NFD) vs precomposed "é" (NFC).
	nfd := "café"
	nfc := "café"

	gotFromNFD := Chunk(nfd)
	gotFromNFC := Chunk(nfc)
	require.Equal(t, gotFromNFC, gotFromNFD)
}

func TestChunkOnSentenceBoundaryMatchesExactSplit(t *testing.T) {
	text := "First sentence here. Second sentence here. Third one too."
	got := Chunk(text)
	want := []string{text} // well under chunkSize, stays one chunk

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Chunk() mismatch (-want +got):\n%s", diff)
	}
}
