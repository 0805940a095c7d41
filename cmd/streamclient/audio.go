package main

import (
	"bytes"
	"encoding/binary"
	"time"
)

// stripWAVHeader returns the samples of a RIFF/WAVE file's data chunk. Any
// other input is returned unchanged and treated as raw PCM.
func stripWAVHeader(data []byte) []byte {
	if len(data) < 12 || !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return data
	}

	offset := 12
	for offset+8 <= len(data) {
		id := data[offset : offset+4]
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if bytes.Equal(id, []byte("data")) {
			end := body + size
			if end > len(data) {
				end = len(data)
			}
			return data[body:end]
		}
		// Chunks are padded to an even size
		offset = body + size + size%2
	}
	return data
}

func splitChunks(data []byte, size int) [][]byte {
	chunks := make([][]byte, 0, (len(data)+size-1)/size)
	for start := 0; start < len(data); start += size {
		end := min(start+size, len(data))
		chunks = append(chunks, data[start:end])
	}
	return chunks
}

// chunkInterval is the playback time of size bytes of 16-bit mono PCM
func chunkInterval(size, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := size / 2
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}
