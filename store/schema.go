package store

import "fmt"

func schema(d Dialect) string {
	ts, money := d.TimestampType(), d.MoneyType()
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS orders (
    id                   TEXT PRIMARY KEY,
    external_id          TEXT NOT NULL DEFAULT '',
    channel              TEXT NOT NULL DEFAULT '',
    status               TEXT NOT NULL DEFAULT 'received',
    customer_name        TEXT NOT NULL DEFAULT '',
    customer_phone       TEXT NOT NULL DEFAULT '',
    order_type           TEXT NOT NULL DEFAULT '',
    pickup_time          %[1]s,
    special_instructions TEXT NOT NULL DEFAULT '',
    subtotal             %[2]s NOT NULL DEFAULT 0,
    total_amount         %[2]s NOT NULL DEFAULT 0,
    prep_minutes         INTEGER NOT NULL DEFAULT 0,
    created_at           %[1]s NOT NULL,
    updated_at           %[1]s NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status, created_at);

CREATE TABLE IF NOT EXISTS order_items (
    id         %[3]s,
    order_id   TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    position   INTEGER NOT NULL,
    name       TEXT NOT NULL,
    quantity   INTEGER NOT NULL DEFAULT 1,
    unit_price %[2]s NOT NULL DEFAULT 0,
    modifiers  TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id, position);

CREATE TABLE IF NOT EXISTS order_history (
    id         %[3]s,
    order_id   TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    status     TEXT NOT NULL,
    detail     TEXT NOT NULL DEFAULT '',
    created_at %[1]s NOT NULL
);
`, ts, money, d.AutoIncrementPK())
}
