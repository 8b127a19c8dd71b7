package model

import "time"

// DecisionLog records one pricing-engine decision for audit and debugging.
// Input and output are stored as JSON snapshots of the request/response.
type DecisionLog struct {
	ID             string    `json:"id"`
	RequestType    string    `json:"request_type"` // PRICE_SUGGESTION, VISION_ANALYSIS
	Input          string    `json:"input"`
	Output         string    `json:"output"`
	DataPointsUsed int       `json:"data_points_used"`
	ProcessingMs   int64     `json:"processing_ms"`
	Timestamp      time.Time `json:"timestamp"`
}
