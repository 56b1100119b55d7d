package cli

import (
	"testing"
)

func TestFormatTime(t *testing.T) {
	testCases := []struct {
		name    string
		seconds float64
		want    string
	}{
		{"zero", 0, "0:00"},
		{"sub-second rounds down", 0.9, "0:00"},
		{"seconds only", 42, "0:42"},
		{"minutes", 185, "3:05"},
		{"just under an hour", 3599, "59:59"},
		{"hours", 3661, "1:01:01"},
		{"negative clamps to zero", -5, "0:00"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FormatTime(tc.seconds); got != tc.want {
				t.Errorf("FormatTime(%v) = %q, want %q", tc.seconds, got, tc.want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	testCases := []struct {
		name  string
		bytes int64
		want  string
	}{
		{"bytes", 512, "512 B"},
		{"kilobytes", 2048, "2.0 KB"},
		{"megabytes", 5 * 1024 * 1024, "5.0 MB"},
		{"gigabytes", 3 * 1024 * 1024 * 1024, "3.0 GB"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FormatBytes(tc.bytes); got != tc.want {
				t.Errorf("FormatBytes(%d) = %q, want %q", tc.bytes, got, tc.want)
			}
		})
	}
}
