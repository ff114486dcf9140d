package youtube

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	ytdl "github.com/kkdai/youtube/v2"
)

// AudioFormat は音声のみのストリーム
type AudioFormat struct {
	ItagNo   int
	MimeType string // "audio/mp4", "audio/webm"
	Bitrate  int    // bps
	Track    string // 音声トラックID (例: "hi.4")、単一トラックの動画では空
	Default  bool   // 多言語動画のデフォルトトラック
}

// Extension はMIMEタイプから拡張子を返す
func (f AudioFormat) Extension() string {
	switch {
	case strings.HasPrefix(f.MimeType, "audio/mp4"):
		return ".m4a"
	case strings.HasPrefix(f.MimeType, "audio/webm"):
		return ".webm"
	default:
		return ".audio"
	}
}

// trackLanguage はトラックIDの言語部分を返す ("hi.4" -> "hi", "en-US.3" -> "en")
func trackLanguage(track string) string {
	if i := strings.IndexAny(track, ".-"); i >= 0 {
		track = track[:i]
	}
	return strings.ToLower(track)
}

// audioFormats は動画の音声のみのフォーマットを列挙する
func audioFormats(video *ytdl.Video) []AudioFormat {
	var formats []AudioFormat
	for _, f := range video.Formats {
		if !strings.HasPrefix(f.MimeType, "audio/") {
			continue
		}
		af := AudioFormat{ItagNo: f.ItagNo, MimeType: f.MimeType, Bitrate: f.Bitrate}
		if f.AudioTrack != nil {
			af.Track = f.AudioTrack.ID
			af.Default = f.AudioTrack.AudioIsDefault
		}
		formats = append(formats, af)
	}
	return formats
}

// selectAudioFormat はダウンロードする音声を選ぶ。
// 優先順位: languageに一致するトラック > デフォルトトラック > ビットレート。
// languageが空(自動判定)ならトラック言語は考慮しない。
func selectAudioFormat(formats []AudioFormat, language string) (AudioFormat, error) {
	if len(formats) == 0 {
		return AudioFormat{}, fmt.Errorf("no audio formats available")
	}
	language = strings.ToLower(language)

	rank := func(f AudioFormat) int {
		r := 0
		if language != "" && f.Track != "" && trackLanguage(f.Track) == language {
			r += 2
		}
		if f.Default {
			r++
		}
		return r
	}

	ranked := make([]AudioFormat, len(formats))
	copy(ranked, formats)
	sort.SliceStable(ranked, func(i, j int) bool {
		ri, rj := rank(ranked[i]), rank(ranked[j])
		if ri != rj {
			return ri > rj
		}
		return ranked[i].Bitrate > ranked[j].Bitrate
	})
	return ranked[0], nil
}

// findFormat は選んだ音声に対応するライブラリのFormatを返す
func findFormat(video *ytdl.Video, selected AudioFormat) *ytdl.Format {
	for i := range video.Formats {
		f := &video.Formats[i]
		if f.ItagNo != selected.ItagNo {
			continue
		}
		track := ""
		if f.AudioTrack != nil {
			track = f.AudioTrack.ID
		}
		if track == selected.Track {
			return f
		}
	}
	return nil
}

// copyWithProgress はctxを確認しながらsrcをdstへコピーし、書き込み済みバイト数を通知する
func copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, total int64, progress func(current, total int64)) error {
	buf := make([]byte, 32*1024)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return err
			}
			written += int64(n)
			if progress != nil {
				progress(written, total)
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

var filenameReplacer = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
	"\"", "_", "<", "_", ">", "_", "|", "_",
)

// sanitizeFilename はファイル名として使えない文字を置換
func sanitizeFilename(name string) string {
	return filenameReplacer.Replace(name)
}
