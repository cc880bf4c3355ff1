package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"kitchenedge/config"
	"kitchenedge/orders"
	"kitchenedge/orderstore"
)

var _ orderstore.Store = (*DB)(nil)

// testDB creates a temporary SQLite database for testing.
func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleOrder(id string, status orders.Status, created time.Time) *orders.Order {
	return &orders.Order{
		ID:         id,
		ExternalID: "A-" + id,
		Channel:    orders.ChannelPOS,
		Status:     status,
		OrderType:  orders.TypeDineIn,
		Items: []orders.LineItem{
			{Name: "Burger", Quantity: 2, UnitPrice: decimal.RequireFromString("9.50"), Modifiers: []string{"no onion", "extra cheese"}},
			{Name: "Fries", Quantity: 1, UnitPrice: decimal.RequireFromString("3.25")},
		},
		Subtotal:    decimal.RequireFromString("22.25"),
		TotalAmount: decimal.RequireFromString("24.03"),
		CreatedAt:   created,
	}
}

func TestInsertAndGetOrder(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	pickup := time.Date(2026, 5, 2, 19, 15, 0, 0, time.UTC)
	in := sampleOrder("o1", orders.StatusReceived, time.Date(2026, 5, 2, 18, 40, 0, 0, time.UTC))
	in.PickupTime = &pickup

	if err := db.Insert(ctx, in); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := db.GetOrder(ctx, "o1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !in.Equal(got) {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, in)
	}
	if got.Items[0].Modifiers[1] != "extra cheese" {
		t.Errorf("modifiers = %v", got.Items[0].Modifiers)
	}

	if _, err := db.GetOrder(ctx, "missing"); !errors.Is(err, orderstore.ErrNotFound) {
		t.Errorf("missing order err = %v, want ErrNotFound", err)
	}
}

func TestListOpenOrders(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)
	for i, st := range []orders.Status{orders.StatusReady, orders.StatusCompleted, orders.StatusReceived, orders.StatusCancelled, orders.StatusPreparing} {
		id := string(rune('a' + i))
		if err := db.Insert(ctx, sampleOrder(id, st, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}

	list, err := db.ListOpenOrders(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var ids []string
	for _, o := range list {
		ids = append(ids, o.ID)
		if len(o.Items) != 2 {
			t.Errorf("order %s has %d items, want 2", o.ID, len(o.Items))
		}
	}
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "c" || ids[2] != "e" {
		t.Errorf("open ids = %v, want [a c e]", ids)
	}
}

func TestRequestStatusChange(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	if err := db.Insert(ctx, sampleOrder("o1", orders.StatusReceived, time.Now())); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := db.RequestStatusChange(ctx, "o1", orders.StatusPreparing, orders.TransitionExtra{PrepMinutes: 15}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	got, _ := db.GetOrder(ctx, "o1")
	if got.Status != orders.StatusPreparing {
		t.Errorf("status = %s, want preparing", got.Status)
	}

	err := db.RequestStatusChange(ctx, "o1", orders.StatusReceived, orders.TransitionExtra{})
	if !errors.Is(err, orders.ErrIllegalTransition) {
		t.Errorf("backwards edge err = %v, want ErrIllegalTransition", err)
	}
	if err := db.RequestStatusChange(ctx, "nope", orders.StatusReady, orders.TransitionExtra{}); !errors.Is(err, orderstore.ErrNotFound) {
		t.Errorf("missing order err = %v, want ErrNotFound", err)
	}

	history, err := db.ListHistory(ctx, "o1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history len = %d, want 1", len(history))
	}
	if history[0].Status != orders.StatusPreparing || history[0].Detail != "prep 15 min" {
		t.Errorf("history[0] = %+v", history[0])
	}
}

func TestAcceptSetsPickupTime(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	o := sampleOrder("p1", orders.StatusReceived, time.Now())
	o.PickupTime = nil
	if err := db.Insert(ctx, o); err != nil {
		t.Fatalf("insert: %v", err)
	}

	before := time.Now()
	if err := db.RequestStatusChange(ctx, "p1", orders.StatusPreparing, orders.TransitionExtra{PrepMinutes: 20}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	after := time.Now()

	got, err := db.GetOrder(ctx, "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.PickupTime == nil {
		t.Fatal("pickup time not set after accept with prep minutes")
	}
	lo, hi := before.Add(20*time.Minute), after.Add(20*time.Minute)
	if got.PickupTime.Before(lo.Add(-time.Millisecond)) || got.PickupTime.After(hi.Add(time.Millisecond)) {
		t.Errorf("pickup = %v, want between %v and %v", got.PickupTime, lo, hi)
	}

	// later edges leave the pickup alone
	want := *got.PickupTime
	if err := db.RequestStatusChange(ctx, "p1", orders.StatusReady, orders.TransitionExtra{}); err != nil {
		t.Fatalf("ready: %v", err)
	}
	got, _ = db.GetOrder(ctx, "p1")
	if got.PickupTime == nil || !got.PickupTime.Equal(want) {
		t.Errorf("pickup after ready = %v, want %v", got.PickupTime, want)
	}
}

func TestRebind(t *testing.T) {
	got := Rebind("UPDATE orders SET status = ? WHERE id = ?")
	if got != "UPDATE orders SET status = $1 WHERE id = $2" {
		t.Errorf("Rebind = %q", got)
	}
}

func TestParseMoney(t *testing.T) {
	for _, v := range []any{"12.50", []byte("12.5"), 12.5} {
		d, err := parseMoney(v)
		if err != nil || !d.Equal(decimal.RequireFromString("12.5")) {
			t.Errorf("parseMoney(%v) = %s, %v", v, d, err)
		}
	}
	if _, err := parseMoney(true); err == nil {
		t.Error("bool should not parse as money")
	}
}
