package domain

import (
	"fmt"
	"strings"
	"time"
)

// ConsentRecord is one row of the append-only opt-in ledger. Current consent
// for a phone is the consent flag of its most recently created record.
type ConsentRecord struct {
	ID        int64
	UserID    *int64
	OrderID   *int64
	PhoneE164 string
	Consent   bool
	Source    string
	ConsentAt time.Time
}

func (c *ConsentRecord) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: consent record is required", ErrValidation)
	}
	if strings.TrimSpace(c.PhoneE164) == "" {
		return fmt.Errorf("%w: phone is required", ErrValidation)
	}
	if strings.TrimSpace(c.Source) == "" {
		return fmt.Errorf("%w: consent source is required", ErrValidation)
	}
	return nil
}
