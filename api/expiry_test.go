package api

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestExpiryCode(t *testing.T) {
	tests := []struct {
		name string
		date time.Time
		want string
	}{
		{"weekly november tuesday", day(2025, time.November, 11), "25N11"},
		{"weekly from the preceding monday", day(2025, time.November, 10), "25N11"},
		{"monthly last tuesday of november", day(2025, time.November, 25), "25NOV"},
		{"wednesday rolls into monthly week", day(2025, time.November, 19), "25NOV"},
		{"weekly december", day(2025, time.December, 1), "25D02"},
		{"weekly january uses zero-based code", day(2026, time.January, 5), "26006"},
		{"monthly january", day(2026, time.January, 27), "26JAN"},
		{"weekly october uses letter code", day(2025, time.October, 6), "25O07"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpiryCode(tt.date); got != tt.want {
				t.Fatalf("ExpiryCode(%s) = %q, want %q", tt.date.Format("2006-01-02"), got, tt.want)
			}
		})
	}
}

func TestNearestStrike(t *testing.T) {
	tests := []struct {
		spot float64
		step int
		want int
	}{
		{24012, 50, 24000},
		{24030, 50, 24050},
		{24025, 50, 24050},
		{23974.9, 50, 23950},
		{24000, 50, 24000},
		{24012, 0, 24012},
	}
	for _, tt := range tests {
		if got := NearestStrike(tt.spot, tt.step); got != tt.want {
			t.Fatalf("NearestStrike(%.1f, %d) = %d, want %d", tt.spot, tt.step, got, tt.want)
		}
	}
}
