package asr

import "context"

// FramesPerSecond is the progress resolution reported to a ProgressSink
const FramesPerSecond = 100

// ProgressSink receives decoding progress from an Engine.
// delta is the number of frames decoded since the previous call and total is
// the current estimate of frames in the input, which may grow as decoding
// proceeds.
type ProgressSink interface {
	Report(delta, total int)
}

// Engine transcribes one media file
type Engine interface {
	Transcribe(ctx context.Context, inputPath string, sink ProgressSink) (string, error)
	Close()
}

// Loader creates a private Engine instance
type Loader interface {
	Load(cfg *WhisperConfig) (Engine, error)
}

// WhisperLoader loads sherpa-onnx Whisper engines
type WhisperLoader struct{}

// Load resolves the model files and creates a recognizer
func (WhisperLoader) Load(cfg *WhisperConfig) (Engine, error) {
	return NewWhisperRecognizer(cfg)
}
