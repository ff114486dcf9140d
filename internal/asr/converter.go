package asr

import (
	"context"
	"encoding/binary"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// SupportedFormats lists media formats that can be transcribed
var SupportedFormats = []string{".mp4", ".mkv", ".mov", ".webm", ".mp3", ".m4a", ".aac", ".ogg", ".flac", ".wav", ".opus"}

// IsSupportedFormat checks if the file extension is a supported media format
func IsSupportedFormat(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, format := range SupportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}

// GetAudioDuration returns the duration of a media file in seconds
func GetAudioDuration(ctx context.Context, ffprobePath, inputPath string) (float64, error) {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}

	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inputPath,
	)

	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("failed to get audio duration: %w", err)
	}
	return ParseDuration(string(output))
}

// ParseDuration parses the ffprobe format=duration output
func ParseDuration(output string) (float64, error) {
	s := strings.TrimSpace(output)
	if s == "" || s == "N/A" {
		return 0, fmt.Errorf("duration unavailable")
	}
	duration, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", s, err)
	}
	return duration, nil
}

// bytesToFloat32 converts 16-bit little-endian PCM to float32 samples
func bytesToFloat32(data []byte) []float32 {
	samples := make([]float32, len(data)/2)
	for i := 0; i < len(samples); i++ {
		sample := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float32(sample) / 32768.0
	}
	return samples
}
