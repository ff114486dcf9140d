package asr

import (
	"math"
	"testing"
)

func TestIsSupportedFormat(t *testing.T) {
	tests := map[string]bool{
		"lecture.mp4": true,
		"LECTURE.MP4": true,
		"voice.m4a":   true,
		"notes.txt":   false,
		"noext":       false,
	}
	for name, want := range tests {
		if got := IsSupportedFormat(name); got != want {
			t.Errorf("IsSupportedFormat(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestParseDuration(t *testing.T) {
	got, err := ParseDuration("180.042000\n")
	if err != nil {
		t.Fatalf("ParseDuration() error = %v", err)
	}
	if math.Abs(got-180.042) > 1e-9 {
		t.Fatalf("duration = %v, want 180.042", got)
	}

	for _, bad := range []string{"", "N/A\n", "abc"} {
		if _, err := ParseDuration(bad); err == nil {
			t.Errorf("ParseDuration(%q) expected error", bad)
		}
	}
}

func TestBytesToFloat32(t *testing.T) {
	// 0x0000, 0x7fff (max), 0x8000 (min), trailing odd byte ignored
	data := []byte{0x00, 0x00, 0xff, 0x7f, 0x00, 0x80, 0x01}
	samples := bytesToFloat32(data)
	if len(samples) != 3 {
		t.Fatalf("len = %d, want 3", len(samples))
	}
	if samples[0] != 0 {
		t.Errorf("samples[0] = %v", samples[0])
	}
	if math.Abs(float64(samples[1])-32767.0/32768.0) > 1e-6 {
		t.Errorf("samples[1] = %v", samples[1])
	}
	if samples[2] != -1 {
		t.Errorf("samples[2] = %v, want -1", samples[2])
	}
}
