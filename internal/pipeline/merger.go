package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"fastscribe/internal/models"
	"fastscribe/internal/progress"
)

// TempDirName is the directory under the output dir that holds run artifacts
const TempDirName = ".temp"

// Merger assembles partial results into the final transcript
type Merger struct{}

// Merge concatenates results 1..n in index order and writes output.
// Nothing is written unless every segment has a result.
func (Merger) Merge(results map[int]string, n int, output string) error {
	var buf bytes.Buffer
	for i := 1; i <= n; i++ {
		path, ok := results[i]
		if !ok {
			return fmt.Errorf("missing result for segment %d", i)
		}
		res, err := readPartial(path)
		if err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
		if res.Index != i {
			return fmt.Errorf("segment %d: result belongs to segment %d", i, res.Index)
		}
		buf.WriteString(res.Text)
	}

	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := progress.WriteFileAtomic(output, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	return nil
}

// Cleanup removes a run directory and the temp root if nothing else is in it
func (Merger) Cleanup(runDir string) error {
	if err := os.RemoveAll(runDir); err != nil {
		return fmt.Errorf("failed to remove %s: %w", runDir, err)
	}
	root := filepath.Dir(runDir)
	if filepath.Base(root) == TempDirName {
		// fails harmlessly while another run still uses it
		_ = os.Remove(root)
	}
	return nil
}

func readPartial(path string) (models.PartialResult, error) {
	var res models.PartialResult
	data, err := os.ReadFile(path)
	if err != nil {
		return res, fmt.Errorf("failed to read result: %w", err)
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return res, fmt.Errorf("failed to decode result: %w", err)
	}
	return res, nil
}
