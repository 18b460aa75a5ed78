package utils

import (
	"testing"
	"time"
)

func TestURLSetNoDuplicates(t *testing.T) {
	s := NewURLSet()

	added := s.Add("https://example.com/1")
	if !added {
		t.Error("first Add should return true")
	}

	added = s.Add("https://example.com/1")
	if added {
		t.Error("second Add of same URL should return false")
	}

	if s.Size() != 1 {
		t.Errorf("size: got %d, want 1", s.Size())
	}
}

func TestURLSetContains(t *testing.T) {
	s := NewURLSet()
	s.Add("https://example.com/profile/acme-solar")

	if !s.Contains("https://example.com/profile/acme-solar") {
		t.Error("Contains should report an added URL")
	}
	if s.Contains("https://example.com/profile/other") {
		t.Error("Contains should not report an unseen URL")
	}
}

func TestPacerEnforcesInterval(t *testing.T) {
	intervalMs := 100
	p := NewPacer(intervalMs)

	var timestamps []time.Time
	for i := 0; i < 3; i++ {
		p.Wait()
		timestamps = append(timestamps, time.Now())
	}

	for i := 1; i < len(timestamps); i++ {
		gap := timestamps[i].Sub(timestamps[i-1])
		min := time.Duration(intervalMs) * time.Millisecond
		if gap < min {
			t.Errorf("gap between wait %d and %d: %v < minimum %v", i-1, i, gap, min)
		}
	}
}

func TestPacerFirstWaitImmediate(t *testing.T) {
	p := NewPacer(500)

	start := time.Now()
	p.Wait()
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("first Wait blocked for %v, expected immediate return", elapsed)
	}
}
