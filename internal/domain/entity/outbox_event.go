package entity

import (
	"encoding/json"
	"time"
)

// TopicSaleCompleted evento publicado por cada venta confirmada.
const TopicSaleCompleted = "sale.completed"

// OutboxEvent evento escrito en la misma transacción que la venta y publicado después por el relay.
type OutboxEvent struct {
	ID        int64
	EventID   string
	Topic     string
	Key       string
	Payload   json.RawMessage
	CreatedAt time.Time
	SentAt    *time.Time
}
