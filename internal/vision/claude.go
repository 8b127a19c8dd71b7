package vision

import (
	"context"
	"encoding/json"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	visionModel     = "claude-haiku-4-5-20251001"
	visionMaxTokens = 512

	visionPrompt = `You are grading fish freshness for a seafood auction.
Look at the photo and respond with only a JSON object:
{"freshness_score": <0-100>, "quality_grade": "<Excellent|Good|Fair|Poor>",
"detected_fish_type": "<species or Unknown>", "explanation": "<one sentence>"}`
)

// ClaudeAnalyzer asks Claude to grade the catch from its photo. Every
// failure path degrades to the deterministic mock so callers always get a
// usable result.
type ClaudeAnalyzer struct {
	client   sdk.Client
	fallback *MockAnalyzer
	log      *zap.Logger
}

// NewClaudeAnalyzer creates the real analyzer.
func NewClaudeAnalyzer(apiKey string) *ClaudeAnalyzer {
	return &ClaudeAnalyzer{
		client:   sdk.NewClient(option.WithAPIKey(apiKey)),
		fallback: NewMockAnalyzer(),
		log:      zap.L().Named("vision"),
	}
}

func (c *ClaudeAnalyzer) Analyze(ctx context.Context, req Request) (*Result, error) {
	if len(req.ImageData) == 0 {
		return c.fallback.Analyze(ctx, req)
	}

	res, err := c.analyzeImage(ctx, req)
	if err != nil {
		c.log.Warn("vision call failed, using mock analysis", zap.Error(err))
		return c.fallback.Analyze(ctx, req)
	}
	return res, nil
}

func (c *ClaudeAnalyzer) analyzeImage(ctx context.Context, req Request) (*Result, error) {
	mediaType := req.MediaType
	if mediaType == "" {
		mediaType = "image/jpeg"
	}

	blocks := make([]sdk.ContentBlockParamUnion, 0, len(req.ImageData)+1)
	for _, img := range req.ImageData {
		blocks = append(blocks, sdk.NewImageBlockBase64(mediaType, img))
	}
	blocks = append(blocks, sdk.NewTextBlock(visionPrompt))

	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     visionModel,
		MaxTokens: visionMaxTokens,
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(blocks...)},
	})
	if err != nil {
		return nil, eris.Wrap(err, "vision: create message")
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return nil, eris.New("vision: empty model response")
	}

	var parsed struct {
		FreshnessScore   int    `json:"freshness_score"`
		QualityGrade     string `json:"quality_grade"`
		DetectedFishType string `json:"detected_fish_type"`
		Explanation      string `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(stripFences(text)), &parsed); err != nil {
		return nil, eris.Wrap(err, "vision: parse model response")
	}

	score := clampScore(parsed.FreshnessScore, 0, 100)
	grade := parsed.QualityGrade
	if grade == "" {
		grade = gradeFor(score)
	}
	detected := parsed.DetectedFishType
	if detected == "" {
		detected = "Unknown"
	}
	return &Result{
		FreshnessScore:   score,
		QualityGrade:     grade,
		DetectedFishType: detected,
		Explanation:      parsed.Explanation,
		Mocked:           false,
	}, nil
}

// stripFences removes a markdown code fence around a JSON payload.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
