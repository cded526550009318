package utils

import (
	"testing"
	"time"
)

func TestFormatDate(t *testing.T) {
	ts := time.Date(2025, 3, 7, 15, 30, 0, 0, time.UTC)
	if got := FormatDate(ts); got != "2025-03-07" {
		t.Errorf("FormatDate = %q, want 2025-03-07", got)
	}
}

func TestParseDateRoundTrip(t *testing.T) {
	got, err := ParseDate("2025-03-07")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if FormatDate(got) != "2025-03-07" {
		t.Errorf("round trip failed: %v", got)
	}
	if got.Location() != time.UTC {
		t.Error("parsed date should be UTC")
	}
}

func TestParseDateRejectsGarbage(t *testing.T) {
	if _, err := ParseDate("07/03/2025"); err == nil {
		t.Error("expected error for non-ISO date")
	}
}

func TestTrailingWindow(t *testing.T) {
	start, end := TrailingWindow(30)
	if !start.Before(end) {
		t.Fatal("start should precede end")
	}
	if got := end.Sub(start); got != 30*24*time.Hour {
		t.Errorf("window span = %v, want 720h", got)
	}
	if end.After(time.Now().UTC()) {
		t.Error("end should not be in the future")
	}
}
