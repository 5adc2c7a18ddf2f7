// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsWAVContainer(t *testing.T) {
	require.True(t, isWAVContainer([]byte("RIFF\x00\x00\x00\x00WAVEfmt ")))
	require.False(t, isWAVContainer([]byte{0x01, 0x02, 0x03, 0x04}))
	require.False(t, isWAVContainer([]byte("short")))
}

func TestWrapRawPCMAsWAVProducesValidHeader(t *testing.T) {
	pcm := make([]byte, 320) // 10ms of 16kHz mono 16-bit
	out := wrapRawPCMAsWAV(pcm)

	require.Len(t, out, 44+len(pcm))
	require.True(t, isWAVContainer(out))
}

func TestEnsureWAVWrapsRawPCM(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "raw.pcm")
	dst := filepath.Join(dir, "out.wav")

	require.NoError(t, os.WriteFile(src, make([]byte, 160), 0o600))
	require.NoError(t, ensureWAV(src, dst))

	out, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.True(t, isWAVContainer(out))
	require.Len(t, out, 44+160)
}

func TestEnsureWAVRejectsEmptyCapture(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "empty.pcm")
	dst := filepath.Join(dir, "out.wav")

	require.NoError(t, os.WriteFile(src, nil, 0o600))
	require.Error(t, ensureWAV(src, dst))

	_, err := os.Stat(dst)
	require.True(t, os.IsNotExist(err))
}

func TestEnsureWAVPassesThroughExistingContainer(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "already.wav")
	dst := filepath.Join(dir, "out.wav")

	existing := append([]byte("RIFF\x24\x00\x00\x00WAVEfmt "), make([]byte, 20)...)
	require.NoError(t, os.WriteFile(src, existing, 0o600))
	require.NoError(t, ensureWAV(src, dst))

	out, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, existing, out)
}
