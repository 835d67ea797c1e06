package model

import "time"

// CurrentStatus is the reduced view of the latest status snapshot.
type CurrentStatus struct {
	FillPercent    float64 `json:"fillPercent"`
	DistanceMm     float64 `json:"distanceMm"`
	LidOpen        bool    `json:"lidOpen"`
	PersonDetected bool    `json:"personDetected"`
	VehicleMoving  bool    `json:"vehicleMoving"`
}

// Snapshot is the complete derived dashboard state served to clients.
type Snapshot struct {
	Status       CurrentStatus `json:"status"`
	StatusSeen   bool          `json:"statusSeen"` // status path holds data
	StatusError  string        `json:"statusError,omitempty"`
	History      HistoryView   `json:"history"`
	HistoryError string        `json:"historyError,omitempty"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// UpdateKind names the slice of state an update changed.
type UpdateKind string

const (
	UpdateStatus  UpdateKind = "status"
	UpdateHistory UpdateKind = "history"
)

// Update is published to listeners after every derived-state change.
type Update struct {
	Kind      UpdateKind `json:"type"`
	Timestamp time.Time  `json:"timestamp"`
	Snapshot  Snapshot   `json:"data"`
}
