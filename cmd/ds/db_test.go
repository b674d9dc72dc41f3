package main

import (
	"strings"
	"testing"
)

const watchConfig = `watches:
  - name: bikes
    query: mountain bike
    schedule: "0 * * * *"
`

func TestDBInit(t *testing.T) {
	path := writeConfig(t, watchConfig)
	out, err := runCmd(t, "db", "init", "-c", path)
	if err != nil {
		t.Fatalf("db init: %v", err)
	}
	for _, want := range []string{"Connected to sqlite database", "Migrated 5 tables", "Seeded 1 watches", "initialized successfully"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}

	// Running twice is safe.
	if _, err := runCmd(t, "db", "init", "-c", path); err != nil {
		t.Errorf("second db init: %v", err)
	}
}

func TestDBReset(t *testing.T) {
	path := initDB(t, "")
	if _, err := runCmd(t, "listing", "add", "-c", path, "--title", "Lamp", "--price", "20"); err != nil {
		t.Fatalf("listing add: %v", err)
	}

	if _, err := runCmd(t, "db", "reset", "-c", path); err == nil || !strings.Contains(err.Error(), "--yes") {
		t.Errorf("reset without --yes error = %v", err)
	}

	out, err := runCmd(t, "db", "reset", "-c", path, "--yes")
	if err != nil {
		t.Fatalf("db reset: %v", err)
	}
	if !strings.Contains(out, "Reset 5 tables") {
		t.Errorf("output = %s", out)
	}

	out, _ = runCmd(t, "listing", "list", "-c", path)
	if !strings.Contains(out, "No listings found.") {
		t.Errorf("listings survived reset: %s", out)
	}
}
