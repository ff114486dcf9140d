package youtube

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	ytdl "github.com/kkdai/youtube/v2"
)

// videoClient はResolverが使うYouTubeクライアントの操作
type videoClient interface {
	GetVideoContext(ctx context.Context, url string) (*ytdl.Video, error)
	GetStreamContext(ctx context.Context, video *ytdl.Video, format *ytdl.Format) (io.ReadCloser, int64, error)
}

// Resolver はYouTubeのURLを音声ファイルとしてダウンロードする
type Resolver struct {
	client videoClient
}

// NewResolver は新しいResolverを作成
func NewResolver() *Resolver {
	return &Resolver{client: &ytdl.Client{}}
}

// youtubeHosts はURLとして受け付けるホスト
var youtubeHosts = map[string]bool{
	"youtube.com":       true,
	"www.youtube.com":   true,
	"m.youtube.com":     true,
	"music.youtube.com": true,
	"youtu.be":          true,
}

// IsURL はYouTubeの動画URLかどうかを返す
func IsURL(source string) bool {
	u, err := url.Parse(source)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	return youtubeHosts[strings.ToLower(u.Hostname())]
}

// Handles はこのResolverで扱えるソースかどうかを返す
func (r *Resolver) Handles(source string) bool {
	return IsURL(source)
}

// Resolve はlanguageの音声トラック(なければデフォルトトラック)のうち
// 最高ビットレートのものをdirにダウンロードし、そのパスを返す
func (r *Resolver) Resolve(ctx context.Context, source, language, dir string) (string, error) {
	video, err := r.client.GetVideoContext(ctx, source)
	if err != nil {
		return "", fmt.Errorf("failed to get video: %w", err)
	}

	selected, err := selectAudioFormat(audioFormats(video), language)
	if err != nil {
		return "", err
	}
	target := findFormat(video, selected)
	if target == nil {
		return "", fmt.Errorf("format not found: itag=%d track=%q", selected.ItagNo, selected.Track)
	}

	stream, size, err := r.client.GetStreamContext(ctx, video, target)
	if err != nil {
		return "", fmt.Errorf("failed to get stream: %w", err)
	}
	defer stream.Close()

	// 区間ファイル名と衝突しないよう source_ を付ける
	outputPath := filepath.Join(dir, "source_"+sanitizeFilename(video.ID)+selected.Extension())
	file, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	log.Printf("Downloading %q (%s, %s)", video.Title, selected.MimeType, humanize.Bytes(uint64(max(size, 0))))

	last := uint64(0)
	err = copyWithProgress(ctx, file, stream, size, func(current, total int64) {
		// 10%ごとにログを出す
		if total <= 0 {
			return
		}
		step := uint64(current * 10 / total)
		if step > last {
			last = step
			log.Printf("Downloaded %s / %s", humanize.Bytes(uint64(current)), humanize.Bytes(uint64(total)))
		}
	})
	if err != nil {
		os.Remove(outputPath) // 失敗時はファイルを削除
		return "", fmt.Errorf("failed to download: %w", err)
	}

	return outputPath, nil
}
