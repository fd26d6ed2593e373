package model

import "time"

type Frequency string

const (
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	// FrequencyDaily exists for exercising the pipeline end to end without
	// waiting a month. Only accepted in development mode.
	FrequencyDaily Frequency = "daily"
)

// Valid reports whether f is a known cadence. Daily is only valid when dev is set.
func (f Frequency) Valid(dev bool) bool {
	switch f {
	case FrequencyMonthly, FrequencyQuarterly:
		return true
	case FrequencyDaily:
		return dev
	}
	return false
}

// Next returns the next check-in time for this cadence: now plus the cadence,
// normalized to the start of day in UTC.
func (f Frequency) Next(now time.Time) time.Time {
	now = now.UTC()
	var next time.Time
	switch f {
	case FrequencyQuarterly:
		next = now.AddDate(0, 3, 0)
	case FrequencyDaily:
		next = now.AddDate(0, 0, 1)
	default:
		next = now.AddDate(0, 1, 0)
	}
	return time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, time.UTC)
}

type SubscriptionStatus string

const (
	StatusActive    SubscriptionStatus = "active"
	StatusPaused    SubscriptionStatus = "paused"
	StatusCancelled SubscriptionStatus = "cancelled"
)

type AnalysisDepth string

const (
	DepthComprehensive AnalysisDepth = "comprehensive"
	DepthFocused       AnalysisDepth = "focused"
	DepthMaintenance   AnalysisDepth = "maintenance"
)

func (d AnalysisDepth) Valid() bool {
	switch d {
	case DepthComprehensive, DepthFocused, DepthMaintenance:
		return true
	}
	return false
}

// MaxFrameworks returns how many frameworks a check-in at this depth runs.
func (d AnalysisDepth) MaxFrameworks() int {
	switch d {
	case DepthComprehensive:
		return len(Frameworks)
	case DepthFocused:
		return 2
	default:
		return 1
	}
}

// Subscription is a user's opt-in to recurring check-ins. Responses are stored
// only as an authenticated-ciphertext envelope; plaintext never touches disk.
type Subscription struct {
	ID                    string             `json:"id"`
	Email                 string             `json:"email"`
	Frequency             Frequency          `json:"frequency"`
	Frameworks            []Framework        `json:"frameworks"`
	AnalysisDepth         AnalysisDepth      `json:"analysisDepth,omitempty"`
	Status                SubscriptionStatus `json:"status"`
	Responses             EncryptedPayload   `json:"-"`
	LastCheckIn           *time.Time         `json:"lastCheckIn"`
	NextCheckIn           time.Time          `json:"nextCheckIn"`
	LastContentGeneration *time.Time         `json:"lastContentGeneration,omitempty"`
	CreatedAt             time.Time          `json:"createdAt"`
}

// Due reports whether the subscription is eligible for processing at now:
// active, past its next check-in, and without a content generation inside the
// current window. NextCheckIn marks the start of the window, so a
// LastContentGeneration at or after it means this window was already handled.
func (s *Subscription) Due(now time.Time) bool {
	if s.Status != StatusActive {
		return false
	}
	if s.NextCheckIn.After(now) {
		return false
	}
	return s.LastContentGeneration == nil || s.LastContentGeneration.Before(s.NextCheckIn)
}

// Public returns the caller-visible view of the subscription. The encrypted
// payload and scheduling internals are never echoed back.
func (s *Subscription) Public() map[string]any {
	return map[string]any{
		"id":         s.ID,
		"email":      s.Email,
		"frequency":  s.Frequency,
		"frameworks": s.Frameworks,
	}
}
