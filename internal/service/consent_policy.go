package service

import (
	"context"

	"github.com/ordercast/wadispatch/internal/repository"
)

// ConsentPolicy decides whether a phone may receive template messages.
type ConsentPolicy interface {
	Allow(ctx context.Context, phoneE164 string) (bool, error)
}

// AllowAllPolicy permits every send. Used when consent enforcement is
// disabled; the consent ledger still records opt-ins for reporting.
type AllowAllPolicy struct{}

func (AllowAllPolicy) Allow(context.Context, string) (bool, error) {
	return true, nil
}

// LedgerConsentPolicy permits sends only to phones whose latest consent
// record is an opt-in.
type LedgerConsentPolicy struct {
	consents repository.ConsentRepository
}

func NewLedgerConsentPolicy(consents repository.ConsentRepository) *LedgerConsentPolicy {
	return &LedgerConsentPolicy{consents: consents}
}

func (p *LedgerConsentPolicy) Allow(ctx context.Context, phoneE164 string) (bool, error) {
	return p.consents.HasConsent(ctx, phoneE164)
}
