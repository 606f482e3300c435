package quota

import (
	"testing"
	"time"
)

const (
	today     = "2025-06-10"
	yesterday = "2025-06-09"
)

func TestEligible(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  bool
	}{
		{
			"Never requested",
			State{},
			true,
		},
		{
			"Stale date with exhausted count",
			State{RequestsToday: 10, LastRequestDate: yesterday},
			true,
		},
		{
			"Same day under the limit",
			State{RequestsToday: 9, LastRequestDate: today},
			true,
		},
		{
			"Same day at the limit",
			State{RequestsToday: 10, LastRequestDate: today},
			false,
		},
		{
			"Same day over the limit",
			State{RequestsToday: 12, LastRequestDate: today},
			false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Eligible(test.state, today, DefaultMaxDailyRequests); got != test.want {
				t.Errorf("Expected %v, got %v", test.want, got)
			}
		})
	}
}

func TestRemaining(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  int64
	}{
		{"Never requested", State{}, 10},
		{"Stale date", State{RequestsToday: 10, LastRequestDate: yesterday}, 10},
		{"Partially used", State{RequestsToday: 3, LastRequestDate: today}, 7},
		{"Exhausted", State{RequestsToday: 10, LastRequestDate: today}, 0},
		{"Floors at zero", State{RequestsToday: 15, LastRequestDate: today}, 0},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Remaining(test.state, today, DefaultMaxDailyRequests); got != test.want {
				t.Errorf("Expected %d, got %d", test.want, got)
			}
		})
	}
}

func TestRecordRequest(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  State
	}{
		{
			"First request ever",
			State{},
			State{RequestsToday: 1, LastRequestDate: today},
		},
		{
			"Rollover resets and counts in one step",
			State{RequestsToday: 10, LastRequestDate: yesterday},
			State{RequestsToday: 1, LastRequestDate: today},
		},
		{
			"Same day increments",
			State{RequestsToday: 4, LastRequestDate: today},
			State{RequestsToday: 5, LastRequestDate: today},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := RecordRequest(test.state, today); got != test.want {
				t.Errorf("Expected %+v, got %+v", test.want, got)
			}
		})
	}
}

func TestRecordRequestExhaustsEligibility(t *testing.T) {
	state := State{}

	for i := int64(0); i < DefaultMaxDailyRequests; i++ {
		if !Eligible(state, today, DefaultMaxDailyRequests) {
			t.Fatalf("Expected eligibility before request %d", i+1)
		}
		state = RecordRequest(state, today)
	}

	if Eligible(state, today, DefaultMaxDailyRequests) {
		t.Errorf("Expected eligibility to be exhausted after %d requests", DefaultMaxDailyRequests)
	}

	tomorrow := "2025-06-11"
	if !Eligible(state, tomorrow, DefaultMaxDailyRequests) {
		t.Errorf("Expected eligibility to return after date rollover")
	}
	if got := Remaining(state, tomorrow, DefaultMaxDailyRequests); got != DefaultMaxDailyRequests {
		t.Errorf("Expected full allowance after rollover, got %d", got)
	}
}

func TestNeedsScheduledSend(t *testing.T) {
	newYork, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("Failed to load location: %v", err)
	}

	now := time.Date(2025, 6, 10, 19, 0, 0, 0, newYork)

	sameDay := time.Date(2025, 6, 10, 8, 30, 0, 0, newYork)
	previousDay := time.Date(2025, 6, 9, 19, 0, 0, 0, newYork)

	// 01:30 UTC on June 11 is still June 10 in New York.
	sameDayInUTC := time.Date(2025, 6, 11, 1, 30, 0, 0, time.UTC)

	tests := []struct {
		name       string
		lastSentAt *time.Time
		want       bool
	}{
		{"Never sent", nil, true},
		{"Sent earlier today", &sameDay, false},
		{"Sent yesterday", &previousDay, true},
		{"Sent today per zone despite UTC date", &sameDayInUTC, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := NeedsScheduledSend(test.lastSentAt, now, newYork); got != test.want {
				t.Errorf("Expected %v, got %v", test.want, got)
			}
		})
	}
}

func TestToday(t *testing.T) {
	newYork, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("Failed to load location: %v", err)
	}

	// 03:00 UTC on June 11 is the evening of June 10 in New York.
	now := time.Date(2025, 6, 11, 3, 0, 0, 0, time.UTC)

	if got := Today(now, newYork); got != "2025-06-10" {
		t.Errorf("Expected 2025-06-10, got %q", got)
	}
	if got := Today(now, time.UTC); got != "2025-06-11" {
		t.Errorf("Expected 2025-06-11, got %q", got)
	}
}

func TestResetTime(t *testing.T) {
	newYork, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("Failed to load location: %v", err)
	}

	now := time.Date(2025, 6, 10, 22, 45, 0, 0, newYork)
	want := time.Date(2025, 6, 11, 0, 0, 0, 0, newYork)

	if got := ResetTime(now, newYork); !got.Equal(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}
