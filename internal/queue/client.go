package queue

import (
	"context"
	"strconv"
)

// Delivery is one message taken from the queue.
type Delivery struct {
	ID            string
	Body          string
	ReceiptHandle string
	ReceiveCount  int
}

// Consumer receives upload notifications and acknowledges them once handled.
type Consumer interface {
	Receive(ctx context.Context) ([]Delivery, error)
	Delete(ctx context.Context, d Delivery) error
}

func parseReceiveCount(raw string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
