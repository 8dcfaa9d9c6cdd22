// Package model holds the domain types shared between the data and business
// layers: predictions, tracked requests, circuit state, and view models.
package model

import (
	"strings"
	"time"
)

// Direction is a travel direction on a route. The numeric values match the
// MBTA V3 API direction_id convention: 0 is inbound, 1 is outbound.
type Direction int

const (
	DirectionInbound Direction = iota
	DirectionOutbound
)

// String returns the configuration-facing name of the direction.
func (d Direction) String() string {
	if d == DirectionOutbound {
		return "outbound"
	}
	return "inbound"
}

// ID returns the direction as the API query value.
func (d Direction) ID() string {
	if d == DirectionOutbound {
		return "1"
	}
	return "0"
}

// Marker returns the short display marker for the direction.
func (d Direction) Marker() string {
	if d == DirectionOutbound {
		return "Out"
	}
	return "In"
}

// ParseDirection maps a configuration string onto a Direction.
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inbound", "in", "0":
		return DirectionInbound, true
	case "outbound", "out", "1":
		return DirectionOutbound, true
	}
	return DirectionInbound, false
}

// PredictionStatus classifies a prediction as reported by the upstream.
type PredictionStatus int

const (
	StatusUnknown PredictionStatus = iota
	StatusOnTime
	StatusDelayed
	StatusCancelled
)

// String returns the lowercase status name.
func (s PredictionStatus) String() string {
	switch s {
	case StatusOnTime:
		return "on-time"
	case StatusDelayed:
		return "delayed"
	case StatusCancelled:
		return "cancelled"
	}
	return "unknown"
}

// ParseStatus maps an upstream status string onto a PredictionStatus.
// The upstream field is free-form text, so matching is by substring.
func ParseStatus(s string) PredictionStatus {
	switch lowered := strings.ToLower(strings.TrimSpace(s)); {
	case lowered == "":
		return StatusUnknown
	case strings.Contains(lowered, "cancel"):
		return StatusCancelled
	case strings.Contains(lowered, "delay") || strings.Contains(lowered, "late"):
		return StatusDelayed
	case strings.Contains(lowered, "on time") || strings.Contains(lowered, "on-time"):
		return StatusOnTime
	}
	return StatusUnknown
}

// Prediction is a single upcoming arrival/departure estimate for a
// route/direction/stop. Produced fresh each fetch cycle and never mutated.
type Prediction struct {
	RouteID   string
	Direction Direction
	StopID    string
	// Scheduled is the timetabled time; nil when the upstream carries none.
	Scheduled *time.Time
	// Predicted is the live estimate; nil when only a schedule exists.
	Predicted *time.Time
	Status    PredictionStatus
	// Destination is the trip headsign when the upstream included it.
	Destination string
}

// EffectiveTime returns the predicted time, falling back to the scheduled
// time. The second return is false when the prediction carries neither.
func (p Prediction) EffectiveTime() (time.Time, bool) {
	if p.Predicted != nil {
		return *p.Predicted, true
	}
	if p.Scheduled != nil {
		return *p.Scheduled, true
	}
	return time.Time{}, false
}

// PredictionRequest identifies one tracked route/direction pair at a station.
// Requests are built from validated configuration through the resolver, so a
// request always carries canonical identifiers.
type PredictionRequest struct {
	StationID string
	RouteID   string
	// RouteLabel is the display label for rows produced from this request
	// (the friendly name, or its abbreviation when configured).
	RouteLabel string
	Direction  Direction
	Count      int
}
