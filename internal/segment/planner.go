package segment

import (
	"fmt"

	"fastscribe/internal/models"
)

// Plan splits a source of the given duration into n equal segments.
// The last segment is open-ended so it absorbs any rounding remainder.
func Plan(duration float64, n int) ([]models.Segment, error) {
	if n <= 0 {
		return nil, fmt.Errorf("segment count must be positive, got %d", n)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("duration must be positive, got %.3f", duration)
	}

	length := duration / float64(n)
	segments := make([]models.Segment, n)
	for i := 1; i <= n; i++ {
		seg := models.Segment{
			Index: i,
			Start: float64(i-1) * length,
		}
		if i < n {
			seg.Duration = length
		}
		segments[i-1] = seg
	}
	return segments, nil
}
