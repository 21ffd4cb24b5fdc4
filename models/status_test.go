package models

import "testing"

func TestStatusTerminal(t *testing.T) {
	cases := []struct {
		s        Status
		terminal bool
	}{
		{StatusProcessing, false},
		{StatusProcessed, true},
		{StatusFailed, true},
	}
	for _, c := range cases {
		if got := c.s.Terminal(); got != c.terminal {
			t.Fatalf("%s.Terminal() = %v, want %v", c.s, got, c.terminal)
		}
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusProcessing, StatusProcessed, StatusFailed} {
		if !s.Valid() {
			t.Fatalf("%s should be valid", s)
		}
	}
	if Status("Done").Valid() {
		t.Fatal("unknown status should not be valid")
	}
}

func TestDocFileFullyProcessed(t *testing.T) {
	f := DocFile{DocStatus: StatusProcessed, LinksStatus: StatusProcessing}
	if f.FullyProcessed() {
		t.Fatal("links still processing")
	}
	f.LinksStatus = StatusProcessed
	if !f.FullyProcessed() {
		t.Fatal("both tracks processed")
	}
}
