// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/google/renameio/v2"
)

// captureSampleRate, captureChannels and captureBitDepth describe the
// mobile client's raw capture profile: 16 kHz, mono, 16-bit signed PCM,
// little-endian. Stage A wraps raw captures in a WAV header matching this
// profile rather than resampling.
const (
	captureSampleRate = 16000
	captureChannels   = 1
	captureBitDepth   = 16
)

// isWAVContainer reports whether data already carries a RIFF/WAVE header.
func isWAVContainer(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// wrapRawPCMAsWAV prepends a standards-conformant 44-byte WAV header to raw
// PCM samples matching the capture profile. It does not resample or
// transcode; format detection upstream decides whether wrapping is needed.
func wrapRawPCMAsWAV(pcm []byte) []byte {
	byteRate := captureSampleRate * captureChannels * captureBitDepth / 8
	blockAlign := captureChannels * captureBitDepth / 8
	dataLen := uint32(len(pcm))

	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], 36+dataLen)
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(header[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(captureChannels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(captureSampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], uint16(captureBitDepth))
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], dataLen)

	return append(header, pcm...)
}

// ensureWAV reads srcPath, wrapping it as a WAV container in place at
// dstPath when it is not already one (raw PCM capture), or simply copying
// it through when it already carries a RIFF/WAVE header. The write is
// atomic: the speech backend reads dstPath right after this returns, and a
// partial write from a crash mid-write must never be picked up as input.
func ensureWAV(srcPath, dstPath string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("pipeline: read scratch file: %w", err)
	}

	out := data
	if !isWAVContainer(data) {
		if len(data) == 0 {
			return fmt.Errorf("pipeline: empty audio capture, nothing to transcribe")
		}
		out = wrapRawPCMAsWAV(data)
	}

	pendingFile, err := renameio.NewPendingFile(dstPath)
	if err != nil {
		return fmt.Errorf("pipeline: create pending wav file: %w", err)
	}
	defer func() { _ = pendingFile.Cleanup() }()

	if _, err := pendingFile.Write(out); err != nil {
		return fmt.Errorf("pipeline: write wav data: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("pipeline: atomically replace wav file: %w", err)
	}
	return nil
}
