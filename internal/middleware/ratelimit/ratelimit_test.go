package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterAllowsUpToBudget(t *testing.T) {
	l := New(Config{RequestsPerMinute: 3, Window: time.Minute})
	defer l.Stop()

	for i := 0; i < 3; i++ {
		if !l.allow("designer-1") {
			t.Fatalf("request %d denied within budget", i+1)
		}
	}
	if l.allow("designer-1") {
		t.Error("request above budget allowed")
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	l := New(Config{RequestsPerMinute: 1, Window: time.Minute})
	defer l.Stop()

	if !l.allow("designer-1") {
		t.Fatal("first designer denied")
	}
	if !l.allow("designer-2") {
		t.Error("second designer denied by first designer's usage")
	}
}

func TestLimiterRefills(t *testing.T) {
	l := New(Config{RequestsPerMinute: 2, Window: 20 * time.Millisecond})
	defer l.Stop()

	l.allow("designer-1")
	l.allow("designer-1")
	if l.allow("designer-1") {
		t.Fatal("drained bucket still allowed")
	}

	time.Sleep(30 * time.Millisecond)
	if !l.allow("designer-1") {
		t.Error("bucket did not refill after the window elapsed")
	}
}
