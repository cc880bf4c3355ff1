package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"kitchenedge/orders"
	"kitchenedge/orderstore"
)

// OrderHistory is one committed status change.
type OrderHistory struct {
	ID        int64         `json:"id"`
	OrderID   string        `json:"order_id"`
	Status    orders.Status `json:"status"`
	Detail    string        `json:"detail"`
	CreatedAt time.Time     `json:"created_at"`
}

const orderSelectCols = `id, external_id, channel, status, customer_name, customer_phone, order_type, pickup_time, special_instructions, subtotal, total_amount, created_at`

func scanOrder(row interface{ Scan(...any) error }) (*orders.Order, error) {
	var o orders.Order
	var status string
	var pickup, createdAt, subtotal, total any

	err := row.Scan(&o.ID, &o.ExternalID, &o.Channel, &status, &o.CustomerName, &o.CustomerPhone,
		&o.OrderType, &pickup, &o.SpecialInstructions, &subtotal, &total, &createdAt)
	if err != nil {
		return nil, err
	}
	o.Status = orders.Status(status)
	o.PickupTime = parseTimePtr(pickup)
	o.CreatedAt = parseTime(createdAt)
	if o.Subtotal, err = parseMoney(subtotal); err != nil {
		return nil, fmt.Errorf("order %s subtotal: %w", o.ID, err)
	}
	if o.TotalAmount, err = parseMoney(total); err != nil {
		return nil, fmt.Errorf("order %s total: %w", o.ID, err)
	}
	return &o, nil
}

// parseMoney accepts the forms the two drivers scan numeric columns into.
func parseMoney(v any) (decimal.Decimal, error) {
	switch m := v.(type) {
	case nil:
		return decimal.Zero, nil
	case int64:
		return decimal.NewFromInt(m), nil
	case float64:
		return decimal.NewFromFloat(m), nil
	case []byte:
		return decimal.NewFromString(string(m))
	case string:
		if m == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(m)
	}
	return decimal.Zero, fmt.Errorf("unsupported money value %T", v)
}

func (db *DB) ListOpenOrders(ctx context.Context) ([]*orders.Order, error) {
	rows, err := db.QueryContext(ctx, db.Q(`SELECT `+orderSelectCols+` FROM orders WHERE status IN (?, ?, ?) ORDER BY created_at, id`),
		string(orders.StatusReceived), string(orders.StatusPreparing), string(orders.StatusReady))
	if err != nil {
		return nil, fmt.Errorf("list open orders: %w", err)
	}
	var list []*orders.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		list = append(list, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, o := range list {
		if o.Items, err = db.listItems(ctx, o.ID); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (db *DB) GetOrder(ctx context.Context, id string) (*orders.Order, error) {
	o, err := scanOrder(db.QueryRowContext(ctx, db.Q(`SELECT `+orderSelectCols+` FROM orders WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, orderstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	if o.Items, err = db.listItems(ctx, id); err != nil {
		return nil, err
	}
	return o, nil
}

func (db *DB) listItems(ctx context.Context, orderID string) ([]orders.LineItem, error) {
	rows, err := db.QueryContext(ctx, db.Q(`SELECT name, quantity, unit_price, modifiers FROM order_items WHERE order_id = ? ORDER BY position`), orderID)
	if err != nil {
		return nil, fmt.Errorf("list items for %s: %w", orderID, err)
	}
	defer rows.Close()

	items := []orders.LineItem{}
	for rows.Next() {
		var li orders.LineItem
		var price any
		var modifiers string
		if err := rows.Scan(&li.Name, &li.Quantity, &price, &modifiers); err != nil {
			return nil, err
		}
		if li.UnitPrice, err = parseMoney(price); err != nil {
			return nil, fmt.Errorf("item %q price: %w", li.Name, err)
		}
		if modifiers != "" {
			if err := json.Unmarshal([]byte(modifiers), &li.Modifiers); err != nil {
				return nil, fmt.Errorf("item %q modifiers: %w", li.Name, err)
			}
		}
		items = append(items, li)
	}
	return items, rows.Err()
}

// RequestStatusChange commits a status edge and its history row. Edges
// outside the lifecycle table are rejected with orders.ErrIllegalTransition.
func (db *DB) RequestStatusChange(ctx context.Context, id string, status orders.Status, extra orders.TransitionExtra) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, db.Q(`SELECT status FROM orders WHERE id = ?`), id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return orderstore.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read status of %s: %w", id, err)
	}
	from := orders.Status(current)
	if from != status && !orders.IsValidTransition(from, status) {
		return &orders.IllegalTransitionError{OrderID: id, From: from, To: status}
	}

	at := time.Now()
	now := formatTime(at)
	if pickup := extra.PickupTime(at); pickup != nil {
		_, err = tx.ExecContext(ctx, db.Q(`UPDATE orders SET status = ?, prep_minutes = ?, pickup_time = ?, updated_at = ? WHERE id = ?`),
			string(status), extra.PrepMinutes, formatTime(*pickup), now, id)
	} else {
		_, err = tx.ExecContext(ctx, db.Q(`UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`),
			string(status), now, id)
	}
	if err != nil {
		return fmt.Errorf("update status of %s: %w", id, err)
	}
	detail := ""
	if extra.PrepMinutes > 0 {
		detail = fmt.Sprintf("prep %d min", extra.PrepMinutes)
	}
	if _, err := tx.ExecContext(ctx, db.Q(`INSERT INTO order_history (order_id, status, detail, created_at) VALUES (?, ?, ?, ?)`),
		id, string(status), detail, now); err != nil {
		return fmt.Errorf("insert history for %s: %w", id, err)
	}
	return tx.Commit()
}

// Insert writes an order and its items, replacing any existing row.
func (db *DB) Insert(ctx context.Context, o *orders.Order) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var pickup any
	if o.PickupTime != nil {
		pickup = formatTime(*o.PickupTime)
	}
	created := o.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	if _, err := tx.ExecContext(ctx, db.Q(`DELETE FROM order_items WHERE order_id = ?`), o.ID); err != nil {
		return fmt.Errorf("clear items of %s: %w", o.ID, err)
	}
	if _, err := tx.ExecContext(ctx, db.Q(`DELETE FROM orders WHERE id = ?`), o.ID); err != nil {
		return fmt.Errorf("clear order %s: %w", o.ID, err)
	}
	if _, err := tx.ExecContext(ctx, db.Q(`INSERT INTO orders (id, external_id, channel, status, customer_name, customer_phone, order_type, pickup_time, special_instructions, subtotal, total_amount, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		o.ID, o.ExternalID, o.Channel, string(o.Status), o.CustomerName, o.CustomerPhone, o.OrderType,
		pickup, o.SpecialInstructions, o.Subtotal.String(), o.TotalAmount.String(),
		formatTime(created), formatTime(time.Now())); err != nil {
		return fmt.Errorf("insert order %s: %w", o.ID, err)
	}
	for i, li := range o.Items {
		modifiers := ""
		if len(li.Modifiers) > 0 {
			data, err := json.Marshal(li.Modifiers)
			if err != nil {
				return err
			}
			modifiers = string(data)
		}
		if _, err := tx.ExecContext(ctx, db.Q(`INSERT INTO order_items (order_id, position, name, quantity, unit_price, modifiers) VALUES (?, ?, ?, ?, ?, ?)`),
			o.ID, i, li.Name, li.Quantity, li.UnitPrice.String(), modifiers); err != nil {
			return fmt.Errorf("insert item %d of %s: %w", i, o.ID, err)
		}
	}
	return tx.Commit()
}

// ListHistory returns an order's committed status changes, oldest first.
func (db *DB) ListHistory(ctx context.Context, orderID string) ([]*OrderHistory, error) {
	rows, err := db.QueryContext(ctx, db.Q(`SELECT id, order_id, status, detail, created_at FROM order_history WHERE order_id = ? ORDER BY id`), orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var history []*OrderHistory
	for rows.Next() {
		var h OrderHistory
		var status string
		var createdAt any
		if err := rows.Scan(&h.ID, &h.OrderID, &status, &h.Detail, &createdAt); err != nil {
			return nil, err
		}
		h.Status = orders.Status(status)
		h.CreatedAt = parseTime(createdAt)
		history = append(history, &h)
	}
	return history, rows.Err()
}
