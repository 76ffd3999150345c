package orders

const (
	TopicOrderCreated  = "order.created"
	TopicOrderPaid     = "order.paid"
	TopicOrderCanceled = "order.canceled"
)

// LifecycleTopics are consumed by the status projector.
var LifecycleTopics = []string{TopicOrderCreated, TopicOrderPaid, TopicOrderCanceled}

// Partition key = order_id, so every event of one order keeps its order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }

func TopicFor(eventType string) string {
	switch eventType {
	case EventOrderPaid:
		return TopicOrderPaid
	case EventOrderCanceled:
		return TopicOrderCanceled
	default:
		return TopicOrderCreated
	}
}
