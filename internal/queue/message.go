package queue

import (
	"fmt"
	"strings"
)

// SendJob is the broker payload for one template send. Attempt starts at 0
// and counts prior failed sends for the same order event.
type SendJob struct {
	OrderID  int64  `json:"orderId"`
	EventKey string `json:"eventKey"`
	Attempt  int    `json:"attempt"`
}

func (j SendJob) Validate() error {
	if j.OrderID <= 0 {
		return fmt.Errorf("orderId must be positive")
	}
	if strings.TrimSpace(j.EventKey) == "" {
		return fmt.Errorf("eventKey is required")
	}
	if j.Attempt < 0 {
		return fmt.Errorf("attempt must not be negative")
	}
	return nil
}
