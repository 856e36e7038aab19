package enums

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const AggregateOrder OutboxAggregateType = "order"

var aggregateTypes = newSet(AggregateOrder)

func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.contains(a) }

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const EventOrderCreated OutboxEventType = "order_created"

var eventTypes = newSet(EventOrderCreated)

func (e OutboxEventType) IsValid() bool { return eventTypes.contains(e) }
