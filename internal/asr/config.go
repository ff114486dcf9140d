package asr

import (
	"fmt"
	"os"
	"path/filepath"
)

// Models lists the supported Whisper model sizes, smallest first
var Models = []string{"tiny", "base", "small", "medium", "large"}

// modelDirNames maps a model size to its sherpa-onnx release directory
var modelDirNames = map[string]string{
	"tiny":   "sherpa-onnx-whisper-tiny",
	"base":   "sherpa-onnx-whisper-base",
	"small":  "sherpa-onnx-whisper-small",
	"medium": "sherpa-onnx-whisper-medium",
	"large":  "sherpa-onnx-whisper-large-v3",
}

// IsKnownModel reports whether size is one of Models
func IsKnownModel(size string) bool {
	_, ok := modelDirNames[size]
	return ok
}

// ModelDir returns the model directory for a size under modelsDir
func ModelDir(modelsDir, size string) string {
	name, ok := modelDirNames[size]
	if !ok {
		name = "sherpa-onnx-whisper-" + size
	}
	return filepath.Join(modelsDir, name)
}

// WhisperConfig holds configuration for one Whisper engine instance
type WhisperConfig struct {
	ModelDir    string
	Model       string // tiny, base, small, medium, large
	Language    string // ja, en, hi, etc. or empty for auto-detect
	Task        string // transcribe or translate
	NumThreads  int
	SampleRate  int
	ChunkSec    int
	FFmpegPath  string
	FFprobePath string

	EncoderPath string
	DecoderPath string
	TokensPath  string
}

// DefaultWhisperConfig returns the default configuration for a model directory
func DefaultWhisperConfig(modelDir string) *WhisperConfig {
	return &WhisperConfig{
		ModelDir:    modelDir,
		Task:        "transcribe",
		NumThreads:  2,
		SampleRate:  16000,
		ChunkSec:    30, // Whisper supports up to 30 seconds natively
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
	}
}

// Resolve locates the encoder, decoder and tokens files in ModelDir
// Quantized int8 files are preferred when both variants exist
func (c *WhisperConfig) Resolve() error {
	if c.ModelDir == "" {
		return fmt.Errorf("model directory is required")
	}
	if _, err := os.Stat(c.ModelDir); err != nil {
		return fmt.Errorf("model directory not found: %s", c.ModelDir)
	}

	c.EncoderPath = findModelFile(c.ModelDir, modelCandidates(c.Model, "encoder", ".onnx"))
	if c.EncoderPath == "" {
		return fmt.Errorf("encoder model not found in %s", c.ModelDir)
	}
	c.DecoderPath = findModelFile(c.ModelDir, modelCandidates(c.Model, "decoder", ".onnx"))
	if c.DecoderPath == "" {
		return fmt.Errorf("decoder model not found in %s", c.ModelDir)
	}
	c.TokensPath = findModelFile(c.ModelDir, tokensCandidates(c.Model))
	if c.TokensPath == "" {
		return fmt.Errorf("tokens file not found in %s", c.ModelDir)
	}
	return nil
}

// modelCandidates lists file names for one model part, int8 first
func modelCandidates(size, part, ext string) []string {
	var prefixes []string
	if size != "" {
		prefixes = append(prefixes, size+"-")
		if size == "large" {
			prefixes = append(prefixes, "large-v3-", "large-v2-")
		}
	}
	prefixes = append(prefixes, "")

	var names []string
	for _, p := range prefixes {
		names = append(names, p+part+".int8"+ext, p+part+ext)
	}
	return names
}

func tokensCandidates(size string) []string {
	var names []string
	if size != "" {
		names = append(names, size+"-tokens.txt")
		if size == "large" {
			names = append(names, "large-v3-tokens.txt", "large-v2-tokens.txt")
		}
	}
	return append(names, "tokens.txt")
}

// findModelFile searches for a model file in the given directory
// Returns the first matching file path or empty string if not found
func findModelFile(dir string, candidates []string) string {
	for _, candidate := range candidates {
		path := filepath.Join(dir, candidate)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
