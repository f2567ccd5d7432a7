package health

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/speedwagon-io/sensorwatch/internal/state"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

type ComponentHealth struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

type Response struct {
	Status     Status            `json:"status"`
	Components []ComponentHealth `json:"components"`
	Timestamp  time.Time         `json:"timestamp"`
}

type Checker interface {
	Name() string
	Check(ctx context.Context) (Status, string)
}

// Aggregate runs every checker. The worst component status wins.
func Aggregate(ctx context.Context, checkers []Checker) Response {
	response := Response{
		Status:     StatusHealthy,
		Components: make([]ComponentHealth, 0, len(checkers)),
		Timestamp:  time.Now().UTC(),
	}

	for _, checker := range checkers {
		status, message := checker.Check(ctx)
		response.Components = append(response.Components, ComponentHealth{
			Name:    checker.Name(),
			Status:  status,
			Message: message,
		})

		if status == StatusUnhealthy {
			response.Status = StatusUnhealthy
		} else if status == StatusDegraded && response.Status == StatusHealthy {
			response.Status = StatusDegraded
		}
	}

	return response
}

// UpstreamChecker probes the sensor service directly.
type UpstreamChecker struct {
	healthFunc func(ctx context.Context) error
}

func NewUpstreamChecker(healthFunc func(ctx context.Context) error) *UpstreamChecker {
	return &UpstreamChecker{healthFunc: healthFunc}
}

func (c *UpstreamChecker) Name() string {
	return "upstream"
}

func (c *UpstreamChecker) Check(ctx context.Context) (Status, string) {
	if err := c.healthFunc(ctx); err != nil {
		return StatusDegraded, err.Error()
	}
	return StatusHealthy, ""
}

// StreamChecker reports degraded while any stream's latest fetch failed.
// Streams that have not completed a fetch yet are ignored.
type StreamChecker struct {
	snapshot func() state.Snapshot
}

func NewStreamChecker(snapshot func() state.Snapshot) *StreamChecker {
	return &StreamChecker{snapshot: snapshot}
}

func (c *StreamChecker) Name() string {
	return "streams"
}

func (c *StreamChecker) Check(ctx context.Context) (Status, string) {
	snap := c.snapshot()

	var failing []string
	for _, st := range state.Streams {
		status := snap.Streams[st]
		if !status.Healthy && status.Failures > 0 {
			failing = append(failing, fmt.Sprintf("%s: %s", st, status.LastError))
		}
	}

	if len(failing) > 0 {
		return StatusDegraded, strings.Join(failing, "; ")
	}
	return StatusHealthy, ""
}

type HistoryChecker struct {
	countFunc func(ctx context.Context) (int64, error)
}

func NewHistoryChecker(countFunc func(ctx context.Context) (int64, error)) *HistoryChecker {
	return &HistoryChecker{countFunc: countFunc}
}

func (c *HistoryChecker) Name() string {
	return "history"
}

func (c *HistoryChecker) Check(ctx context.Context) (Status, string) {
	if _, err := c.countFunc(ctx); err != nil {
		return StatusUnhealthy, err.Error()
	}
	return StatusHealthy, ""
}
