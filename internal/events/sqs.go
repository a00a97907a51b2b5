package events

import (
	"context"

	"github.com/timothy-okoduwa/jojo-shop/internal/aws"
)

// SQSPublisher sends events to an SQS queue as JSON message bodies.
type SQSPublisher struct {
	publisher *aws.Publisher
}

func NewSQSPublisher(p *aws.Publisher) *SQSPublisher {
	return &SQSPublisher{publisher: p}
}

func (p *SQSPublisher) Publish(ctx context.Context, ev Event) error {
	return p.publisher.SendJSON(ctx, ev, map[string]string{
		"event_type": ev.Type,
		"order_id":   ev.OrderID,
		"event_id":   ev.ID,
	})
}
