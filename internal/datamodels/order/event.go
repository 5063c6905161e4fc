package order

import (
	"time"

	"github.com/google/uuid"
)

// EventType 订单事件类型
type EventType string

const (
	EventCreated       EventType = "order.created"
	EventCanceled      EventType = "order.canceled"
	EventStatusChanged EventType = "order.status_changed"
)

// Event 事务提交后发布到 MQ 的订单事件
type Event struct {
	ID         string        `json:"event_id"`
	Type       EventType     `json:"type"`
	OrderID    int64         `json:"order_id"`
	UserID     int64         `json:"user_id"`
	Status     Status        `json:"status"`
	Lines      []LineRequest `json:"lines"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// NewEvent 根据订单当前快照生成事件
func NewEvent(t EventType, o *Order) *Event {
	lines := make([]LineRequest, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, LineRequest{BookID: l.BookID, Quantity: l.Quantity})
	}
	return &Event{
		ID:         uuid.NewString(),
		Type:       t,
		OrderID:    o.ID,
		UserID:     o.UserID,
		Status:     o.Status,
		Lines:      lines,
		OccurredAt: time.Now().UTC(),
	}
}

// BookIDs 事件涉及的图书（去重）
func (e *Event) BookIDs() []int64 {
	seen := make(map[int64]struct{}, len(e.Lines))
	out := make([]int64, 0, len(e.Lines))
	for _, l := range e.Lines {
		if _, ok := seen[l.BookID]; ok {
			continue
		}
		seen[l.BookID] = struct{}{}
		out = append(out, l.BookID)
	}
	return out
}
