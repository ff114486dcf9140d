package asr

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"
)

// WhisperRecognizer wraps Whisper model for speech recognition
type WhisperRecognizer struct {
	recognizer *sherpa.OfflineRecognizer
	config     *WhisperConfig
}

// NewWhisperRecognizer creates a new Whisper recognizer
func NewWhisperRecognizer(config *WhisperConfig) (*WhisperRecognizer, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := config.Resolve(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	sherpaConfig := sherpa.OfflineRecognizerConfig{
		FeatConfig: sherpa.FeatureConfig{
			SampleRate: config.SampleRate,
			FeatureDim: 80,
		},
		ModelConfig: sherpa.OfflineModelConfig{
			Whisper: sherpa.OfflineWhisperModelConfig{
				Encoder:  config.EncoderPath,
				Decoder:  config.DecoderPath,
				Language: config.Language,
				Task:     config.Task,
			},
			Tokens:     config.TokensPath,
			NumThreads: config.NumThreads,
			Debug:      0,
		},
	}

	recognizer := sherpa.NewOfflineRecognizer(&sherpaConfig)
	if recognizer == nil {
		return nil, fmt.Errorf("failed to create Whisper recognizer")
	}

	return &WhisperRecognizer{
		recognizer: recognizer,
		config:     config,
	}, nil
}

// Close releases the recognizer resources
func (r *WhisperRecognizer) Close() {
	if r.recognizer != nil {
		sherpa.DeleteOfflineRecognizer(r.recognizer)
		r.recognizer = nil
	}
}

// Transcribe decodes a media file in ChunkSec windows and reports the frames
// of every decoded window to sink. Each window's text is emitted as one line.
func (r *WhisperRecognizer) Transcribe(ctx context.Context, inputPath string, sink ProgressSink) (string, error) {
	chunkSec := r.config.ChunkSec
	if chunkSec <= 0 {
		chunkSec = 30
	}

	// without a duration the total is an estimate that grows with each window
	duration, _ := GetAudioDuration(ctx, r.config.FFprobePath, inputPath)
	total := int(duration * FramesPerSecond)
	estimated := total <= 0
	windowFrames := chunkSec * FramesPerSecond

	cmd := exec.CommandContext(ctx, r.config.FFmpegPath,
		"-nostdin",
		"-i", inputPath,
		"-vn",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", fmt.Sprintf("%d", r.config.SampleRate),
		"-ac", "1",
		"-loglevel", "error",
		"pipe:1",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("failed to create pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	reader := bufio.NewReader(stdout)
	chunkBytes := r.config.SampleRate * chunkSec * 2

	var text strings.Builder
	processed := 0
	for {
		if err := ctx.Err(); err != nil {
			_ = cmd.Wait()
			return "", err
		}

		buffer := make([]byte, chunkBytes)
		n, readErr := io.ReadFull(reader, buffer)
		if n == 0 {
			break
		}

		samples := bytesToFloat32(buffer[:n])
		if line := r.transcribeChunk(samples); line != "" {
			text.WriteString(line)
			text.WriteString("\n")
		}

		frames := len(samples) * FramesPerSecond / r.config.SampleRate
		processed += frames
		total = nextTotal(processed, total, windowFrames, estimated)
		if sink != nil {
			sink.Report(frames, total)
		}

		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			_ = cmd.Wait()
			return "", fmt.Errorf("failed to read audio: %w", readErr)
		}
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("ffmpeg decode failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return text.String(), nil
}

// nextTotal returns the frame total to report after processed frames.
// An estimated total stays a window ahead of processed so progress never
// reads 100% before decoding ends; a probed total only grows when the probe
// was short.
func nextTotal(processed, total, window int, estimated bool) int {
	if estimated && processed >= total {
		return processed + window
	}
	if processed > total {
		return processed
	}
	return total
}

// transcribeChunk decodes one window of samples
func (r *WhisperRecognizer) transcribeChunk(samples []float32) string {
	if len(samples) == 0 {
		return ""
	}

	stream := sherpa.NewOfflineStream(r.recognizer)
	defer sherpa.DeleteOfflineStream(stream)

	stream.AcceptWaveform(r.config.SampleRate, samples)
	r.recognizer.Decode(stream)

	result := stream.GetResult()
	if result == nil {
		return ""
	}
	return strings.TrimSpace(result.Text)
}
