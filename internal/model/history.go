package model

// HistoryRecord is one level reading from the upstream event log.
type HistoryRecord struct {
	ID               string  `json:"id"`
	Level            float64 `json:"level"`
	TimestampSeconds float64 `json:"timestampSeconds"`
	DistanceMm       float64 `json:"distanceMm"`
}

// Bucket is the average level over one fixed-width time window.
type Bucket struct {
	EndSeconds   int64   `json:"bucketEndSeconds"`
	AverageLevel float64 `json:"averageLevel"`
}

// TableRow is a history record prepared for tabular display.
type TableRow struct {
	ID               string  `json:"id"`
	Time             string  `json:"time"`
	Level            float64 `json:"level"`
	DistanceMm       float64 `json:"distanceMm"`
	TimestampSeconds float64 `json:"timestampSeconds"`
}

// HistoryView holds the table rows (newest first) and the chart buckets (oldest first).
type HistoryView struct {
	Rows    []TableRow `json:"rows"`
	Buckets []Bucket   `json:"buckets"`
	Empty   bool       `json:"empty"`
}
