package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/ordercast/wadispatch/internal/domain"
)

func statusPayload(updates ...WebhookStatusUpdate) WebhookPayload {
	return WebhookPayload{
		Object: "whatsapp_business_account",
		Entry: []WebhookEntry{
			{
				ID: "wba-1",
				Changes: []WebhookChange{
					{Field: "messages", Value: WebhookValue{Statuses: updates}},
				},
			},
		},
	}
}

func TestReconcilerAppliesDeliveredStatus(t *testing.T) {
	t.Parallel()

	var gotMessageID string
	var gotUpdate domain.DispatchLogUpdate

	logs := newFakeLogRepo()
	logs.updateByProvider = func(ctx context.Context, providerMsgID string, update domain.DispatchLogUpdate) error {
		gotMessageID = providerMsgID
		gotUpdate = update
		return nil
	}

	rec := NewReconciler(logs, zap.NewNop())
	rec.Process(context.Background(), statusPayload(
		WebhookStatusUpdate{ID: "wamid.A1", Status: "delivered"},
	))

	if gotMessageID != "wamid.A1" {
		t.Fatalf("provider message id = %q, want wamid.A1", gotMessageID)
	}
	if gotUpdate.Status == nil || *gotUpdate.Status != domain.StatusDelivered {
		t.Fatalf("status = %v, want delivered", gotUpdate.Status)
	}
	// Only the status moves; send-result fields stay untouched.
	if gotUpdate.ProviderMessageID != nil || gotUpdate.ErrorCode != nil || gotUpdate.ErrorMessage != nil {
		t.Fatal("reconciliation must update status only")
	}
	if len(gotUpdate.Payload) != 0 || len(gotUpdate.Response) != 0 {
		t.Fatal("reconciliation must not rewrite payload or response")
	}
}

func TestReconcilerMapsUnknownTokenToSent(t *testing.T) {
	t.Parallel()

	var gotUpdate domain.DispatchLogUpdate

	logs := newFakeLogRepo()
	logs.updateByProvider = func(ctx context.Context, providerMsgID string, update domain.DispatchLogUpdate) error {
		gotUpdate = update
		return nil
	}

	rec := NewReconciler(logs, zap.NewNop())
	rec.Process(context.Background(), statusPayload(
		WebhookStatusUpdate{ID: "wamid.A2", Status: "warehoused"},
	))

	if gotUpdate.Status == nil || *gotUpdate.Status != domain.StatusSent {
		t.Fatalf("status = %v, want sent for unknown token", gotUpdate.Status)
	}
}

func TestReconcilerSkipsIncompleteUpdates(t *testing.T) {
	t.Parallel()

	var applied []string

	logs := newFakeLogRepo()
	logs.updateByProvider = func(ctx context.Context, providerMsgID string, update domain.DispatchLogUpdate) error {
		applied = append(applied, providerMsgID)
		return nil
	}

	rec := NewReconciler(logs, zap.NewNop())
	rec.Process(context.Background(), statusPayload(
		WebhookStatusUpdate{ID: "", Status: "delivered"},
		WebhookStatusUpdate{ID: "wamid.B1", Status: ""},
		WebhookStatusUpdate{ID: "wamid.B2", Status: "read"},
	))

	if len(applied) != 1 {
		t.Fatalf("applied updates = %d, want 1", len(applied))
	}
	if applied[0] != "wamid.B2" {
		t.Fatalf("applied id = %q, want wamid.B2", applied[0])
	}
}

func TestReconcilerContinuesPastErrors(t *testing.T) {
	t.Parallel()

	var applied []string

	logs := newFakeLogRepo()
	logs.updateByProvider = func(ctx context.Context, providerMsgID string, update domain.DispatchLogUpdate) error {
		applied = append(applied, providerMsgID)
		switch providerMsgID {
		case "wamid.C1":
			return domain.ErrNotFound
		case "wamid.C2":
			return errors.New("database down")
		}
		return nil
	}

	rec := NewReconciler(logs, zap.NewNop())
	rec.Process(context.Background(), statusPayload(
		WebhookStatusUpdate{ID: "wamid.C1", Status: "delivered"},
		WebhookStatusUpdate{ID: "wamid.C2", Status: "delivered"},
		WebhookStatusUpdate{ID: "wamid.C3", Status: "delivered"},
	))

	if len(applied) != 3 {
		t.Fatalf("attempted updates = %d, want 3", len(applied))
	}
}
