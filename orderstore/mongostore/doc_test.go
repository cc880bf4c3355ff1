package mongostore

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"kitchenedge/orders"
)

func TestDocumentRoundTripKeepsMoneyExact(t *testing.T) {
	pickup := time.Date(2026, 3, 1, 18, 30, 0, 0, time.UTC)
	in := &orders.Order{
		ID:          "o1",
		ExternalID:  "A12",
		Channel:     orders.ChannelWeb,
		Status:      orders.StatusPreparing,
		OrderType:   orders.TypePickup,
		PickupTime:  &pickup,
		Items:       []orders.LineItem{{Name: "Ramen", Quantity: 2, UnitPrice: decimal.RequireFromString("12.35"), Modifiers: []string{"no egg"}}},
		Subtotal:    decimal.RequireFromString("24.70"),
		TotalAmount: decimal.RequireFromString("26.68"),
		CreatedAt:   time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC),
	}

	raw, err := bson.Marshal(fromOrder(in))
	require.NoError(t, err)
	var doc orderDoc
	require.NoError(t, bson.Unmarshal(raw, &doc))
	assert.Equal(t, "26.68", doc.TotalAmount)

	out, err := doc.toOrder()
	require.NoError(t, err)
	assert.True(t, in.Equal(out), "got %+v", out)
}

func TestToOrderRejectsBadMoney(t *testing.T) {
	_, err := orderDoc{ID: "o1", TotalAmount: "ten"}.toOrder()
	assert.Error(t, err)

	o, err := orderDoc{ID: "o2"}.toOrder()
	require.NoError(t, err)
	assert.True(t, o.TotalAmount.IsZero())
	assert.Empty(t, o.Items)
}

func TestOpenStatuses(t *testing.T) {
	assert.ElementsMatch(t, []string{"received", "preparing", "ready"}, openStatuses())
}

func TestStatusUpdateSetsPickupFromPrep(t *testing.T) {
	now := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	set, err := statusUpdate("o1", orders.StatusReceived, orders.StatusPreparing, orders.TransitionExtra{PrepMinutes: 20}, now)
	require.NoError(t, err)
	assert.Equal(t, "preparing", set["status"])
	assert.Equal(t, 20, set["prep_minutes"])
	assert.Equal(t, now.Add(20*time.Minute), set["pickup_time"])

	set, err = statusUpdate("o1", orders.StatusPreparing, orders.StatusReady, orders.TransitionExtra{}, now)
	require.NoError(t, err)
	assert.NotContains(t, set, "pickup_time")
	assert.NotContains(t, set, "prep_minutes")
}

func TestStatusUpdateRejectsIllegalEdge(t *testing.T) {
	now := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	_, err := statusUpdate("o1", orders.StatusReceived, orders.StatusCompleted, orders.TransitionExtra{}, now)
	assert.ErrorIs(t, err, orders.ErrIllegalTransition)

	_, err = statusUpdate("o1", orders.StatusCompleted, orders.StatusPreparing, orders.TransitionExtra{}, now)
	assert.ErrorIs(t, err, orders.ErrIllegalTransition)

	// re-asserting the current status is allowed
	_, err = statusUpdate("o1", orders.StatusReady, orders.StatusReady, orders.TransitionExtra{}, now)
	assert.NoError(t, err)
}
