// Package vision scores catch freshness from seller-supplied photos. A
// deterministic mock serves development and tests; the real mode asks Claude
// and falls back to the mock on any failure.
package vision

import "context"

// Request describes one analysis. ImageData holds base64-encoded images;
// MediaType applies to all of them and defaults to image/jpeg.
type Request struct {
	FishName  string   `json:"fish_name"`
	ImageData []string `json:"image_data,omitempty"`
	MediaType string   `json:"media_type,omitempty"`
}

// Result is the outcome of a freshness analysis.
type Result struct {
	FreshnessScore   int    `json:"freshness_score"` // 0-100
	QualityGrade     string `json:"quality_grade"`   // Excellent, Good, Fair, Poor
	DetectedFishType string `json:"detected_fish_type"`
	Explanation      string `json:"explanation"`
	Mocked           bool   `json:"mocked"`
}

// Analyzer scores a catch. Implementations must not return an error for
// missing images; the score degrades instead.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (*Result, error)
}

// DefaultScore is assumed when no image and no known species is supplied.
const DefaultScore = 70

func gradeFor(score int) string {
	switch {
	case score >= 85:
		return "Excellent"
	case score >= 70:
		return "Good"
	case score >= 55:
		return "Fair"
	default:
		return "Poor"
	}
}

func clampScore(score, lo, hi int) int {
	if score < lo {
		return lo
	}
	if score > hi {
		return hi
	}
	return score
}

// Scorer adapts an Analyzer to the pricing engine's image-to-score hook.
type Scorer struct {
	Analyzer Analyzer
}

// FreshnessFromImages runs a full analysis and returns only the score.
func (s Scorer) FreshnessFromImages(ctx context.Context, images []string) (int, error) {
	res, err := s.Analyzer.Analyze(ctx, Request{ImageData: images})
	if err != nil {
		return 0, err
	}
	return res.FreshnessScore, nil
}
