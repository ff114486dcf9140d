package youtube

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	ytdl "github.com/kkdai/youtube/v2"
)

func TestIsURL(t *testing.T) {
	tests := []struct {
		source string
		want   bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ", true},
		{"http://m.youtube.com/watch?v=abc", true},
		{"https://example.com/watch?v=abc", false},
		{"/videos/talk.mp4", false},
		{"input/youtube.com.mp4", false},
		{"ftp://youtube.com/x", false},
	}
	for _, tt := range tests {
		if got := IsURL(tt.source); got != tt.want {
			t.Errorf("IsURL(%q) = %v, want %v", tt.source, got, tt.want)
		}
	}
}

// withTrack attaches a multi-language audio track to f
func withTrack(f ytdl.Format, id string, isDefault bool) ytdl.Format {
	f.AudioTrack = &struct {
		DisplayName    string `json:"displayName"`
		ID             string `json:"id"`
		AudioIsDefault bool   `json:"audioIsDefault"`
	}{ID: id, AudioIsDefault: isDefault}
	return f
}

func TestAudioFormats(t *testing.T) {
	video := &ytdl.Video{Formats: ytdl.FormatList{
		{ItagNo: 18, MimeType: `video/mp4; codecs="avc1"`, Bitrate: 500000},
		{ItagNo: 140, MimeType: `audio/mp4; codecs="mp4a.40.2"`, Bitrate: 128000},
		withTrack(ytdl.Format{ItagNo: 251, MimeType: `audio/webm; codecs="opus"`, Bitrate: 160000}, "hi.4", true),
	}}

	formats := audioFormats(video)
	if len(formats) != 2 {
		t.Fatalf("expected 2 audio formats, got %d", len(formats))
	}
	if formats[0].Extension() != ".m4a" || formats[1].Extension() != ".webm" {
		t.Fatalf("unexpected extensions: %+v", formats)
	}
	if formats[1].Track != "hi.4" || !formats[1].Default {
		t.Fatalf("audio track not carried: %+v", formats[1])
	}
}

func TestTrackLanguage(t *testing.T) {
	tests := map[string]string{
		"hi.4":    "hi",
		"en-US.3": "en",
		"EN":      "en",
		"":        "",
	}
	for track, want := range tests {
		if got := trackLanguage(track); got != want {
			t.Errorf("trackLanguage(%q) = %q, want %q", track, got, want)
		}
	}
}

func TestSelectAudioFormat(t *testing.T) {
	formats := []AudioFormat{
		{ItagNo: 1, Bitrate: 200, Track: "en.2"},
		{ItagNo: 2, Bitrate: 150, Track: "hi.4", Default: true},
		{ItagNo: 3, Bitrate: 100, Track: "hi.4", Default: true},
		{ItagNo: 4, Bitrate: 120, Track: "en.2"},
	}

	tests := []struct {
		language string
		want     int
	}{
		{"", 2},   // default track
		{"en", 1}, // requested language, best bitrate
		{"EN", 1},
		{"hi", 2},
		{"fr", 2}, // no match falls back to the default track
	}
	for _, tt := range tests {
		got, err := selectAudioFormat(formats, tt.language)
		if err != nil {
			t.Fatalf("selectAudioFormat(%q) error = %v", tt.language, err)
		}
		if got.ItagNo != tt.want {
			t.Errorf("selectAudioFormat(%q) = itag %d, want %d", tt.language, got.ItagNo, tt.want)
		}
	}

	single := []AudioFormat{{ItagNo: 140, Bitrate: 128}, {ItagNo: 251, Bitrate: 160}}
	if got, _ := selectAudioFormat(single, "en"); got.ItagNo != 251 {
		t.Fatalf("single-track video should pick best bitrate: %+v", got)
	}
	if _, err := selectAudioFormat(nil, ""); err == nil {
		t.Fatal("expected error for no formats")
	}
}

type cancelAfterReader struct {
	cancel context.CancelFunc
	reads  int
}

func (r *cancelAfterReader) Read(p []byte) (int, error) {
	r.reads++
	if r.reads == 2 {
		r.cancel()
	}
	return copy(p, "chunk"), nil
}

func TestCopyWithProgress(t *testing.T) {
	var dst bytes.Buffer
	var calls []int64
	err := copyWithProgress(context.Background(), &dst, strings.NewReader("hello world"), 11, func(current, total int64) {
		calls = append(calls, current)
	})
	if err != nil {
		t.Fatalf("copyWithProgress() error = %v", err)
	}
	if dst.String() != "hello world" || calls[len(calls)-1] != 11 {
		t.Fatalf("dst = %q, calls = %v", dst.String(), calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	err = copyWithProgress(ctx, &bytes.Buffer{}, &cancelAfterReader{cancel: cancel}, 0, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("copyWithProgress() error = %v, want context.Canceled", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := sanitizeFilename(`a/b:c?d`); got != "a_b_c_d" {
		t.Fatalf("sanitizeFilename() = %q", got)
	}
}
