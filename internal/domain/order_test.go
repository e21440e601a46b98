package domain

import (
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrderStatus(t *testing.T) {
	tests := []struct {
		in   string
		want OrderStatus
		ok   bool
	}{
		{"pending", OrderStatusPending, true},
		{"in_progress", OrderStatusInProgress, true},
		{"en_cours", OrderStatusInProgress, true},
		{"Processing", OrderStatusInProgress, true},
		{" livree ", OrderStatusDelivered, true},
		{"completed", OrderStatusDelivered, true},
		{"annulee", OrderStatusCancelled, true},
		{"canceled", OrderStatusCancelled, true},
		{"shipped", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseOrderStatus(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOrderStatus_Label(t *testing.T) {
	assert.Equal(t, "Pending", OrderStatusPending.Label())
	assert.Equal(t, "In progress", OrderStatus("en_cours").Label())
	assert.Equal(t, "Delivered", OrderStatusDelivered.Label())
	assert.Equal(t, "Cancelled", OrderStatusCancelled.Label())
	assert.Equal(t, "on_hold", OrderStatus("on_hold").Label())
}

func TestOrderStatus_UnmarshalNormalizesLegacyValues(t *testing.T) {
	var order Order
	require.NoError(t, json.Unmarshal([]byte(`{"id":"o1","status":"livree","total":12.5}`), &order))

	assert.Equal(t, OrderStatusDelivered, order.Status)
	assert.True(t, order.Total.Equal(decimal.RequireFromString("12.5")))

	require.NoError(t, json.Unmarshal([]byte(`{"status":"on_hold"}`), &order))
	assert.Equal(t, OrderStatus("on_hold"), order.Status)
	assert.False(t, order.Status.Valid())
}

func TestOrder_ComputedTotal(t *testing.T) {
	order := Order{
		Total: decimal.NewFromInt(23),
		OrderItems: []OrderItem{
			{ProductID: "A", Quantity: 2, Price: decimal.NewFromInt(10)},
			{ProductID: "B", Quantity: 1, Price: decimal.NewFromInt(3)},
		},
	}

	assert.True(t, order.ComputedTotal().Equal(decimal.NewFromInt(23)))
	assert.True(t, order.TotalConsistent())

	order.Total = decimal.NewFromInt(20)
	assert.False(t, order.TotalConsistent())
}

func TestCreateOrderInput_OmitsEmptyNote(t *testing.T) {
	payload, err := json.Marshal(CreateOrderInput{
		UserID:  "u1",
		Items:   []OrderItemInput{{ProductID: "A", Quantity: 2}},
		Address: "1 Main St",
		Phone:   "555",
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{"userId":"u1","items":[{"productId":"A","quantity":2}],"address":"1 Main St","phone":"555"}`, string(payload))
}

// Property: every canonical status parses to itself and is valid
func TestProperty_CanonicalStatusesRoundTrip(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("canonical statuses parse to themselves", prop.ForAll(
		func(i int) bool {
			status := OrderStatuses[i]
			parsed, ok := ParseOrderStatus(string(status))
			return ok && parsed == status && parsed.Valid()
		},
		gen.IntRange(0, len(OrderStatuses)-1),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Property: the computed total is the sum of quantity × price
func TestProperty_ComputedTotalIsSumOfItems(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("computed total matches item subtotals", prop.ForAll(
		func(quantities []int, cents []int64) bool {
			n := min(len(quantities), len(cents))
			order := Order{}
			expected := decimal.Zero
			for i := 0; i < n; i++ {
				price := decimal.New(cents[i], -2)
				order.OrderItems = append(order.OrderItems, OrderItem{Quantity: quantities[i], Price: price})
				expected = expected.Add(price.Mul(decimal.NewFromInt(int64(quantities[i]))))
			}
			order.Total = expected
			return order.ComputedTotal().Equal(expected) && order.TotalConsistent()
		},
		gen.SliceOf(gen.IntRange(1, 50)),
		gen.SliceOf(gen.Int64Range(0, 100000)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestStatusWireNames(t *testing.T) {
	names, err := StatusWireNames(map[string]string{"en_cours": " en_cours ", "Delivered": "livree"})
	require.NoError(t, err)
	assert.Equal(t, map[OrderStatus]string{
		OrderStatusInProgress: "en_cours",
		OrderStatusDelivered:  "livree",
	}, names)

	_, err = StatusWireNames(map[string]string{"shipped": "expedie"})
	assert.ErrorContains(t, err, "unknown order status")

	_, err = StatusWireNames(map[string]string{"pending": " "})
	assert.ErrorContains(t, err, "empty wire name")
}
