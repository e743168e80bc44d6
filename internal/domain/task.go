// Package domain contains entity without logic, just meta-data
package domain

import "errors"

const MaxTaskIDLen = 36

var (
	ErrTaskIDEmpty   = errors.New("task id empty")
	ErrTaskIDTooLong = errors.New("task id too long")
	ErrEndpointEmpty = errors.New("stream endpoint empty")
)

type TaskID string

// Task is one analysis task whose annotated output can be previewed live.
// The stream endpoint is where the worker answers session offers.
type Task struct {
	ID             TaskID `json:"id"`
	StreamEndpoint string `json:"stream_endpoint"`
}

// NewTask is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewTask(id, endpoint string) (*Task, error) {
	if len(id) == 0 {
		return nil, ErrTaskIDEmpty
	}
	if len(id) > MaxTaskIDLen {
		return nil, ErrTaskIDTooLong
	}
	if len(endpoint) == 0 {
		return nil, ErrEndpointEmpty
	}
	return &Task{ID: TaskID(id), StreamEndpoint: endpoint}, nil
}
