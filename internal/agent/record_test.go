package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/zulandar/dealscout/internal/db"
	"github.com/zulandar/dealscout/internal/models"
	"github.com/zulandar/dealscout/internal/negotiation"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func TestRecord_AgentExchange(t *testing.T) {
	gdb := testDB(t)
	c, _ := fixedCompleter(`{"action": "offer", "offer_price": 380}`, nil)
	src := Record(New(negotiation.Buyer, c), gdb, "neg-1")

	raw, err := src.Decide(context.Background(), buyerSnapshot(0))
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if raw["action"] != "offer" {
		t.Errorf("raw = %v", raw)
	}

	var logs []models.AgentLog
	gdb.Order("id").Find(&logs)
	if len(logs) != 2 {
		t.Fatalf("logs = %d, want 2", len(logs))
	}
	if logs[0].Direction != "out" || logs[1].Direction != "in" {
		t.Errorf("directions = %q, %q", logs[0].Direction, logs[1].Direction)
	}
	if logs[1].Model != "test-model" || logs[1].InputTokens != 10 || logs[1].OutputTokens != 5 {
		t.Errorf("in row = %+v", logs[1])
	}
	if logs[0].NegotiationID != "neg-1" || logs[0].Party != "buyer" || logs[0].Turn != 1 {
		t.Errorf("out row = %+v", logs[0])
	}
}

func TestRecord_RulesSource(t *testing.T) {
	gdb := testDB(t)
	src := Record(NewRules(negotiation.Buyer), gdb, "neg-2")
	if _, err := src.Decide(context.Background(), buyerSnapshot(0)); err != nil {
		t.Fatalf("Decide: %v", err)
	}
	var logs []models.AgentLog
	gdb.Find(&logs)
	if len(logs) != 1 || logs[0].Direction != "in" || logs[0].Content == "" {
		t.Errorf("logs = %+v, want one in row with the decision", logs)
	}
}

func TestRecord_Failure(t *testing.T) {
	gdb := testDB(t)
	c, _ := fixedCompleter("", errors.New("timeout"))
	src := Record(New(negotiation.Buyer, c), gdb, "neg-3")
	if _, err := src.Decide(context.Background(), buyerSnapshot(0)); err == nil {
		t.Fatal("expected error")
	}
	var errRows int64
	gdb.Model(&models.AgentLog{}).Where("direction = ?", "err").Count(&errRows)
	if errRows != 1 {
		t.Errorf("err rows = %d, want 1", errRows)
	}
}

func TestRecord_AbandonedTurnWritesNothing(t *testing.T) {
	gdb := testDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	late := negotiation.DecisionFunc(func(context.Context, negotiation.Snapshot) (negotiation.RawDecision, error) {
		cancel()
		return negotiation.RawDecision{"action": "offer", "offer_price": 380.0}, nil
	})
	src := Record(late, gdb, "neg-4")
	if _, err := src.Decide(ctx, buyerSnapshot(0)); err != nil {
		t.Fatalf("Decide: %v", err)
	}
	var rows int64
	gdb.Model(&models.AgentLog{}).Where("negotiation_id = ?", "neg-4").Count(&rows)
	if rows != 0 {
		t.Errorf("rows = %d, want 0 after the caller gave up", rows)
	}
}
