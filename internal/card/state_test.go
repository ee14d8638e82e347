package card

import "testing"

func TestTrackerRejectsDoubleBegin(t *testing.T) {
	tr := &Tracker{}
	if !tr.Begin() {
		t.Fatal("first Begin rejected")
	}
	if tr.Current() != StatusLoading {
		t.Fatalf("status = %v, want loading", tr.Current())
	}
	if tr.Begin() {
		t.Error("Begin allowed while a fetch is in flight")
	}
}

func TestTrackerAllowsRestartAfterTerminal(t *testing.T) {
	tr := &Tracker{}
	tr.Begin()
	tr.Succeed()
	if !tr.Begin() {
		t.Error("Begin rejected after success")
	}
	tr.Fail()
	if tr.Current() != StatusError {
		t.Fatalf("status = %v, want error", tr.Current())
	}
	if !tr.Begin() {
		t.Error("Begin rejected after failure")
	}
}
