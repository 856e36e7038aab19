package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpsertModeIsValid(t *testing.T) {
	assert.True(t, UpsertModeIncrement.IsValid())
	assert.True(t, UpsertModeSet.IsValid())
	assert.False(t, UpsertMode("increment").IsValid())
	assert.False(t, UpsertMode("REPLACE").IsValid())
}

func TestOrderAndTransactionStatuses(t *testing.T) {
	assert.True(t, OrderStatusPending.IsValid())
	assert.False(t, OrderStatus("Pending").IsValid())
	assert.False(t, OrderStatus("lost").IsValid())

	assert.True(t, TransactionStatusPending.IsValid())
	assert.False(t, TransactionStatus("pending").IsValid())
	assert.False(t, TransactionStatus("").IsValid())
}

func TestOutboxEnums(t *testing.T) {
	assert.True(t, EventOrderCreated.IsValid())
	assert.False(t, OutboxEventType("order_updated").IsValid())
	assert.True(t, AggregateOrder.IsValid())
	assert.False(t, OutboxAggregateType("vendor_order").IsValid())
}
