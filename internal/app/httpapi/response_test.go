package httpapi

import (
	"testing"
	"time"
)

func TestFormatDate(t *testing.T) {
	cases := []struct {
		in   time.Time
		want string
	}{
		{time.Date(2026, time.January, 2, 15, 4, 5, 0, time.UTC), "January 2nd 2026, 3:04:05 pm"},
		{time.Date(2026, time.March, 1, 0, 30, 0, 0, time.UTC), "March 1st 2026, 12:30:00 am"},
		{time.Date(2026, time.April, 3, 12, 0, 0, 0, time.UTC), "April 3rd 2026, 12:00:00 pm"},
		{time.Date(2026, time.May, 11, 9, 5, 9, 0, time.UTC), "May 11th 2026, 9:05:09 am"},
		{time.Date(2026, time.June, 12, 23, 59, 59, 0, time.UTC), "June 12th 2026, 11:59:59 pm"},
		{time.Date(2026, time.July, 13, 1, 0, 0, 0, time.UTC), "July 13th 2026, 1:00:00 am"},
		{time.Date(2026, time.August, 21, 8, 0, 0, 0, time.UTC), "August 21st 2026, 8:00:00 am"},
		{time.Date(2026, time.September, 22, 8, 0, 0, 0, time.UTC), "September 22nd 2026, 8:00:00 am"},
	}
	for _, tc := range cases {
		if got := formatDate(tc.in); got != tc.want {
			t.Errorf("formatDate(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatDatePtrNil(t *testing.T) {
	if got := formatDatePtr(nil); got != "" {
		t.Errorf("expected empty string for nil expiration, got %q", got)
	}
}

func TestParseExpiration(t *testing.T) {
	if v, err := parseExpiration(""); err != nil || v != nil {
		t.Errorf("blank expiration should mean none, got %v, %v", v, err)
	}
	if _, err := parseExpiration("2026-09-01T12:00:00Z"); err != nil {
		t.Errorf("RFC3339 should parse: %v", err)
	}
	if _, err := parseExpiration("2026-09-01 12:00"); err != nil {
		t.Errorf("form layout should parse: %v", err)
	}
	if _, err := parseExpiration("next tuesday"); err == nil {
		t.Errorf("expected error for unparseable date")
	}
}
