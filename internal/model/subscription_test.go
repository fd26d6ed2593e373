package model

import (
	"testing"
	"time"
)

func TestFrequencyNext(t *testing.T) {
	at := time.Date(2025, 1, 15, 10, 30, 45, 0, time.UTC)

	tests := []struct {
		freq Frequency
		want time.Time
	}{
		{FrequencyMonthly, time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)},
		{FrequencyQuarterly, time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)},
		{FrequencyDaily, time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		if got := tt.freq.Next(at); !got.Equal(tt.want) {
			t.Errorf("%s.Next = %v, want %v", tt.freq, got, tt.want)
		}
	}
}

func TestFrequencyNextNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	at := time.Date(2025, 6, 10, 2, 0, 0, 0, loc) // 2025-06-09T17:00Z
	got := FrequencyMonthly.Next(at)
	want := time.Date(2025, 7, 9, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Next = %v, want %v", got, want)
	}
}

func TestFrequencyValid(t *testing.T) {
	if !FrequencyMonthly.Valid(false) || !FrequencyQuarterly.Valid(false) {
		t.Error("standard cadences rejected")
	}
	if FrequencyDaily.Valid(false) {
		t.Error("daily accepted outside development")
	}
	if !FrequencyDaily.Valid(true) {
		t.Error("daily rejected in development")
	}
	if Frequency("weekly").Valid(true) {
		t.Error("unknown cadence accepted")
	}
}

func TestSubscriptionDue(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	windowStart := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	before := windowStart.Add(-time.Hour)
	after := windowStart.Add(time.Hour)

	tests := []struct {
		name string
		sub  Subscription
		want bool
	}{
		{"active and elapsed", Subscription{Status: StatusActive, NextCheckIn: windowStart}, true},
		{"not yet due", Subscription{Status: StatusActive, NextCheckIn: now.Add(time.Hour)}, false},
		{"paused", Subscription{Status: StatusPaused, NextCheckIn: windowStart}, false},
		{"cancelled", Subscription{Status: StatusCancelled, NextCheckIn: windowStart}, false},
		{"generated before window", Subscription{Status: StatusActive, NextCheckIn: windowStart, LastContentGeneration: &before}, true},
		{"generated in window", Subscription{Status: StatusActive, NextCheckIn: windowStart, LastContentGeneration: &after}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sub.Due(now); got != tt.want {
				t.Errorf("Due = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAnalysisDepthMaxFrameworks(t *testing.T) {
	if got := DepthComprehensive.MaxFrameworks(); got != len(Frameworks) {
		t.Errorf("comprehensive = %d, want all", got)
	}
	if got := DepthFocused.MaxFrameworks(); got != 2 {
		t.Errorf("focused = %d, want 2", got)
	}
	if got := DepthMaintenance.MaxFrameworks(); got != 1 {
		t.Errorf("maintenance = %d, want 1", got)
	}
}

func TestSubscriptionPublic(t *testing.T) {
	sub := Subscription{
		ID:         "sub-1",
		Email:      "alice@example.com",
		Frequency:  FrequencyMonthly,
		Frameworks: []Framework{FrameworkPattern},
		Responses:  EncryptedPayload{Data: "c2VjcmV0"},
	}
	pub := sub.Public()
	if pub["id"] != "sub-1" || pub["email"] != "alice@example.com" {
		t.Errorf("public view = %v", pub)
	}
	if len(pub) != 4 {
		t.Errorf("public view has %d fields, want exactly id/email/frequency/frameworks", len(pub))
	}
}
