// Package bitrate holds the small bitrate and rate-limit computations used by
// the encoder and downloader.
package bitrate

// VideoKbpsFromContainer estimates the video bitrate of a file whose streams
// do not report one: the container size minus the audio payload, spread over
// the duration. Returns 0 when the inputs cannot produce a positive value.
func VideoKbpsFromContainer(sizeBytes int64, durationSec float64, audioKbps int) int {
	if sizeBytes <= 0 || durationSec <= 0 {
		return 0
	}
	audioBytes := float64(audioKbps) * 1000 * durationSec / 8
	videoBytes := float64(sizeBytes) - audioBytes
	if videoBytes <= 0 {
		return 0
	}
	return int(videoBytes * 8 / durationSec / 1000)
}

// MbitToBytesPerSec converts a user-facing MBit/s limit into bytes per second.
func MbitToBytesPerSec(mbit float64) int64 {
	if mbit <= 0 {
		return 0
	}
	return int64(mbit * 1_000_000 / 8)
}

// Clamp returns v constrained to [min, max].
func Clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// SafeAudioKbps ensures audio bitrate is at least 64 kbps.
func SafeAudioKbps(v int) int {
	if v < 64 {
		return 64
	}
	return v
}
