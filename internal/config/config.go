package config

import (
	"flag"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"fastscribe/internal/asr"
	"fastscribe/internal/models"
)

// MaxSegments は1ジョブあたりの最大区間数（= 同時ワーカープロセス数）
const MaxSegments = 8

// Config はfastscribeの設定
type Config struct {
	ModelsDir string
	Model     string
	Language  string
	Segments  int
	Threads   int

	OutputDir  string
	DBPath     string // 空なら履歴を記録しない
	StatusAddr string // 空なら状態APIを起動しない

	ExtractTimeout    time.Duration
	TranscribeTimeout time.Duration
	StaggerPercent    int
	PollInterval      time.Duration

	FFmpegPath  string
	FFprobePath string
}

// Default はデフォルト設定を返す
func Default() Config {
	return Config{
		ModelsDir:         "models",
		Model:             "base",
		Language:          "en",
		Segments:          1,
		Threads:           2,
		OutputDir:         "output",
		DBPath:            "data/fastscribe.db",
		ExtractTimeout:    300 * time.Second,
		TranscribeTimeout: 6 * time.Hour,
		StaggerPercent:    2,
		PollInterval:      500 * time.Millisecond,
		FFmpegPath:        "ffmpeg",
		FFprobePath:       "ffprobe",
	}
}

// Load は .env と環境変数から設定を読み込む（.envが存在しない場合はスキップ）
func Load() (Config, error) {
	_ = godotenv.Load()
	cfg := Default()
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv は FASTSCRIBE_* 環境変数で設定を上書きする
func (c *Config) applyEnv(getenv func(string) string) error {
	strs := map[string]*string{
		"FASTSCRIBE_MODELS_DIR":  &c.ModelsDir,
		"FASTSCRIBE_MODEL":       &c.Model,
		"FASTSCRIBE_LANGUAGE":    &c.Language,
		"FASTSCRIBE_OUTPUT_DIR":  &c.OutputDir,
		"FASTSCRIBE_DB":          &c.DBPath,
		"FASTSCRIBE_STATUS_ADDR": &c.StatusAddr,
		"FASTSCRIBE_FFMPEG":      &c.FFmpegPath,
		"FASTSCRIBE_FFPROBE":     &c.FFprobePath,
	}
	for key, dst := range strs {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"FASTSCRIBE_SEGMENTS":        &c.Segments,
		"FASTSCRIBE_THREADS":         &c.Threads,
		"FASTSCRIBE_STAGGER_PERCENT": &c.StaggerPercent,
	}
	for key, dst := range ints {
		v := getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = n
	}

	durations := map[string]*time.Duration{
		"FASTSCRIBE_EXTRACT_TIMEOUT":    &c.ExtractTimeout,
		"FASTSCRIBE_TRANSCRIBE_TIMEOUT": &c.TranscribeTimeout,
		"FASTSCRIBE_POLL_INTERVAL":      &c.PollInterval,
	}
	for key, dst := range durations {
		v := getenv(key)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = d
	}
	return nil
}

// RegisterFlags はコマンドラインフラグを登録する（現在の値がデフォルトになる）
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.ModelsDir, "models", c.ModelsDir, "Directory containing sherpa-onnx Whisper models")
	fs.StringVar(&c.Model, "model", c.Model, "Whisper model: tiny, base, small, medium, large")
	fs.StringVar(&c.Language, "lang", c.Language, "Language: en, hi, auto (or any two-letter code)")
	fs.IntVar(&c.Segments, "segments", c.Segments, fmt.Sprintf("Number of parallel segments (1-%d)", MaxSegments))
	fs.IntVar(&c.Threads, "threads", c.Threads, "Inference threads per worker")
	fs.StringVar(&c.OutputDir, "o", c.OutputDir, "Output directory")
	fs.StringVar(&c.DBPath, "db", c.DBPath, "Run history database (empty to disable)")
	fs.StringVar(&c.StatusAddr, "status-addr", c.StatusAddr, "Serve the status API on this address (e.g. :8080)")
	fs.DurationVar(&c.ExtractTimeout, "extract-timeout", c.ExtractTimeout, "Timeout for each segment extraction")
	fs.DurationVar(&c.TranscribeTimeout, "transcribe-timeout", c.TranscribeTimeout, "Timeout for the whole transcription step (0 disables)")
	fs.IntVar(&c.StaggerPercent, "stagger", c.StaggerPercent, "Start loading a model once the previous segment reaches this percent (0 disables)")
	fs.DurationVar(&c.PollInterval, "poll", c.PollInterval, "Progress polling interval")
	fs.StringVar(&c.FFmpegPath, "ffmpeg", c.FFmpegPath, "Path to ffmpeg")
	fs.StringVar(&c.FFprobePath, "ffprobe", c.FFprobePath, "Path to ffprobe")
}

var languageCode = regexp.MustCompile(`^[a-z]{2}$`)

// Validate は設定値を検証する
func (c Config) Validate() error {
	if c.Segments < 1 || c.Segments > MaxSegments {
		return fmt.Errorf("segments must be between 1 and %d, got %d", MaxSegments, c.Segments)
	}
	if !asr.IsKnownModel(c.Model) {
		return fmt.Errorf("unknown model %q (valid: %v)", c.Model, asr.Models)
	}
	if c.Language != models.LanguageAuto && !languageCode.MatchString(c.Language) {
		return fmt.Errorf("invalid language %q", c.Language)
	}
	if c.Threads < 1 {
		return fmt.Errorf("threads must be >= 1")
	}
	if c.ExtractTimeout <= 0 {
		return fmt.Errorf("extract timeout must be positive")
	}
	if c.TranscribeTimeout < 0 {
		return fmt.Errorf("transcribe timeout must not be negative")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.StaggerPercent < 0 || c.StaggerPercent > 100 {
		return fmt.Errorf("stagger percent must be between 0 and 100")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory is required")
	}
	return nil
}

// languageNames は言語コードの表示名
var languageNames = map[string]string{
	"en":   "English",
	"hi":   "Hindi",
	"auto": "Auto-detect",
}

// LanguageName は言語コードの表示名を返す（未登録なら大文字のコード）
func LanguageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	return strings.ToUpper(code)
}
