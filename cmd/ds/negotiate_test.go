package main

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/zulandar/dealscout/internal/scout"
)

func seedBikes(t *testing.T, path string) {
	t.Helper()
	for _, args := range [][]string{
		{"--id", "trek", "--title", "Trek mountain bike", "--price", "450", "--category", "bikes"},
		{"--id", "giant", "--title", "Giant mountain bike", "--price", "600", "--category", "bikes"},
	} {
		full := append([]string{"listing", "add", "-c", path}, args...)
		if out, err := runCmd(t, full...); err != nil {
			t.Fatalf("listing add: %v\n%s", err, out)
		}
	}
}

func TestNegotiateSingle(t *testing.T) {
	path := initDB(t, "")
	seedBikes(t, path)

	out, err := runCmd(t, "negotiate", "-c", path, "trek")
	if err != nil {
		t.Fatalf("negotiate: %v\n%s", err, out)
	}
	for _, want := range []string{"Negotiation started for Trek mountain bike.", "BUYER", "SELLER", "Status: ", "Asking:     $450.00", "Saved as:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Error("colour codes written to a non-terminal")
	}
}

func TestNegotiateJSON(t *testing.T) {
	path := initDB(t, "")
	seedBikes(t, path)

	out, err := runCmd(t, "negotiate", "-c", path, "--json", "--budget", "500", "trek", "giant")
	if err != nil {
		t.Fatalf("negotiate: %v\n%s", err, out)
	}
	var outcomes []scout.Outcome
	if err := json.Unmarshal([]byte(out), &outcomes); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(outcomes))
	}
	for _, o := range outcomes {
		if o.Result.MaxBudget != 500 {
			t.Errorf("%s MaxBudget = %v, want 500", o.Listing.ID, o.Result.MaxBudget)
		}
		if o.Result.NegotiatedPrice > 500 {
			t.Errorf("%s NegotiatedPrice = %v exceeds budget", o.Listing.ID, o.Result.NegotiatedPrice)
		}
	}
}

func TestNegotiateSummaryTable(t *testing.T) {
	path := initDB(t, "")
	seedBikes(t, path)

	out, err := runCmd(t, "negotiate", "-c", path, "trek", "giant")
	if err != nil {
		t.Fatalf("negotiate: %v\n%s", err, out)
	}
	if !strings.Contains(out, "NEGOTIATION") || !strings.Contains(out, "Giant mountain bike") {
		t.Errorf("summary output = %s", out)
	}
}

func TestNegotiateErrors(t *testing.T) {
	path := initDB(t, "")
	seedBikes(t, path)

	tests := []struct {
		name string
		args []string
	}{
		{"no args", []string{"negotiate", "-c", path}},
		{"missing listing", []string{"negotiate", "-c", path, "ghost"}},
		{"negative budget", []string{"negotiate", "-c", path, "--budget", "-5", "trek"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runCmd(t, tt.args...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestHunt(t *testing.T) {
	path := initDB(t, "")
	seedBikes(t, path)

	out, err := runCmd(t, "hunt", "-c", path, "mountain bike")
	if err != nil {
		t.Fatalf("hunt: %v\n%s", err, out)
	}
	for _, want := range []string{"Searching for relevant products...", "Found 2 matching listings", "All 2 negotiations complete.", "NEGOTIATION"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestHuntNoMatches(t *testing.T) {
	path := initDB(t, "")
	seedBikes(t, path)

	out, err := runCmd(t, "hunt", "-c", path, "kayak")
	if err != nil {
		t.Fatalf("hunt: %v", err)
	}
	if !strings.Contains(out, "No products found") {
		t.Errorf("output = %s", out)
	}

	if _, err := runCmd(t, "hunt", "-c", path, "--budget", "0", "bike"); err == nil {
		t.Error("zero budget should fail")
	}
}

func TestHuntJSON(t *testing.T) {
	path := initDB(t, "")
	seedBikes(t, path)

	out, err := runCmd(t, "hunt", "-c", path, "--json", "--budget", "500", "mountain bike")
	if err != nil {
		t.Fatalf("hunt: %v\n%s", err, out)
	}
	var report scout.HuntReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(report.Outcomes) != 1 || report.Outcomes[0].Listing.ID != "trek" {
		t.Errorf("outcomes = %+v, want only trek under the budget", report.Outcomes)
	}
}
