package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/ordercast/wadispatch/internal/domain"
	"github.com/ordercast/wadispatch/internal/provider"
	"github.com/ordercast/wadispatch/internal/queue"
	"github.com/ordercast/wadispatch/internal/resolver"
)

func testMapping() *domain.DispatchMapping {
	return &domain.DispatchMapping{
		ID:           1,
		EventKey:     domain.EventOrderCompleted,
		TemplateName: "order_completed",
		Language:     "en_US",
		ResolverKeys: []string{"order_number", "billing_first_name", "site_name"},
		Enabled:      true,
	}
}

func testOrder() *domain.Order {
	return &domain.Order{
		ID:               42,
		Number:           "1042",
		Total:            "99.90",
		Currency:         "EUR",
		Status:           "completed",
		BillingFirstName: "Ada",
		BillingLastName:  "Lovelace",
		BillingPhone:     "+1 (555) 123-4567",
		BillingEmail:     "ada@example.com",
	}
}

func newTestService(
	t *testing.T,
	logs *fakeLogRepo,
	mappings *fakeMappingRepo,
	orders *fakeOrderSource,
	sender *fakeSender,
	scheduler *fakeScheduler,
	consent ConsentPolicy,
) *DispatchService {
	t.Helper()

	svc, err := NewDispatchService(
		logs,
		mappings,
		orders,
		sender,
		scheduler,
		resolver.New("Ordercast Store"),
		consent,
		&fakeRateLimiter{},
		2,
		10,
		zap.NewNop(),
	)
	if err != nil {
		t.Fatalf("NewDispatchService() error = %v", err)
	}
	return svc
}

func TestHandleOrderStatusChangedSchedulesJob(t *testing.T) {
	t.Parallel()

	mappings := &fakeMappingRepo{
		findByEventFn: func(ctx context.Context, eventKey string) (*domain.DispatchMapping, error) {
			return testMapping(), nil
		},
	}
	scheduler := &fakeScheduler{}
	svc := newTestService(t, newFakeLogRepo(), mappings, &fakeOrderSource{}, &fakeSender{}, scheduler, nil)

	err := svc.HandleOrderStatusChanged(context.Background(), domain.OrderStatusEvent{
		OrderID:   42,
		OldStatus: "processing",
		NewStatus: "completed",
	})
	if err != nil {
		t.Fatalf("HandleOrderStatusChanged() error = %v", err)
	}

	jobs := scheduler.immediateJobs()
	if len(jobs) != 1 {
		t.Fatalf("scheduled jobs = %d, want 1", len(jobs))
	}
	if jobs[0].OrderID != 42 {
		t.Fatalf("job order id = %d, want 42", jobs[0].OrderID)
	}
	if jobs[0].EventKey != domain.EventOrderCompleted {
		t.Fatalf("job event key = %q, want %q", jobs[0].EventKey, domain.EventOrderCompleted)
	}
	if jobs[0].Attempt != 0 {
		t.Fatalf("job attempt = %d, want 0", jobs[0].Attempt)
	}
}

func TestHandleOrderStatusChangedIgnoresUnmappedStatus(t *testing.T) {
	t.Parallel()

	scheduler := &fakeScheduler{}
	svc := newTestService(t, newFakeLogRepo(), &fakeMappingRepo{}, &fakeOrderSource{}, &fakeSender{}, scheduler, nil)

	err := svc.HandleOrderStatusChanged(context.Background(), domain.OrderStatusEvent{
		OrderID:   42,
		NewStatus: "refunded",
	})
	if err != nil {
		t.Fatalf("HandleOrderStatusChanged() error = %v", err)
	}

	if len(scheduler.immediateJobs()) != 0 {
		t.Fatal("no job should be scheduled for an unmapped status")
	}
}

func TestHandleOrderStatusChangedSkipsWithoutMapping(t *testing.T) {
	t.Parallel()

	scheduler := &fakeScheduler{}
	svc := newTestService(t, newFakeLogRepo(), &fakeMappingRepo{}, &fakeOrderSource{}, &fakeSender{}, scheduler, nil)

	err := svc.HandleOrderStatusChanged(context.Background(), domain.OrderStatusEvent{
		OrderID:   42,
		NewStatus: "completed",
	})
	if err != nil {
		t.Fatalf("HandleOrderStatusChanged() error = %v", err)
	}

	if len(scheduler.immediateJobs()) != 0 {
		t.Fatal("no job should be scheduled without an enabled mapping")
	}
}

func TestHandleOrderStatusChangedSwallowsSchedulerError(t *testing.T) {
	t.Parallel()

	mappings := &fakeMappingRepo{
		findByEventFn: func(ctx context.Context, eventKey string) (*domain.DispatchMapping, error) {
			return testMapping(), nil
		},
	}
	scheduler := &fakeScheduler{
		scheduleFn: func(ctx context.Context, job queue.SendJob) error {
			return errors.New("broker down")
		},
	}
	svc := newTestService(t, newFakeLogRepo(), mappings, &fakeOrderSource{}, &fakeSender{}, scheduler, nil)

	err := svc.HandleOrderStatusChanged(context.Background(), domain.OrderStatusEvent{
		OrderID:   42,
		NewStatus: "completed",
	})
	if err != nil {
		t.Fatalf("HandleOrderStatusChanged() error = %v, trigger path must not fail", err)
	}
}

func TestExecuteSendSuccess(t *testing.T) {
	t.Parallel()

	logs := newFakeLogRepo()
	mappings := &fakeMappingRepo{
		findByEventFn: func(ctx context.Context, eventKey string) (*domain.DispatchMapping, error) {
			return testMapping(), nil
		},
	}
	orders := &fakeOrderSource{
		getByIDFn: func(ctx context.Context, id int64) (*domain.Order, error) {
			return testOrder(), nil
		},
	}
	sender := &fakeSender{
		sendFn: func(ctx context.Context, phoneE164, templateName, language string, variables []string) provider.SendResult {
			if logs.createdCount() != 1 {
				t.Error("queued log row must exist before the provider call")
			}
			return provider.SendResult{Success: true, MessageID: "wamid.OK1"}
		},
	}
	scheduler := &fakeScheduler{}
	svc := newTestService(t, logs, mappings, orders, sender, scheduler, nil)

	err := svc.ExecuteSend(context.Background(), queue.SendJob{OrderID: 42, EventKey: domain.EventOrderCompleted})
	if err != nil {
		t.Fatalf("ExecuteSend() error = %v", err)
	}

	if logs.createdCount() != 1 {
		t.Fatalf("created rows = %d, want 1", logs.createdCount())
	}

	created := logs.created[0]
	if created.Status != domain.StatusQueued {
		t.Fatalf("created status = %s, want queued", created.Status)
	}
	if created.PhoneE164 != "+15551234567" {
		t.Fatalf("created phone = %q, want +15551234567", created.PhoneE164)
	}
	if created.TemplateName != "order_completed" {
		t.Fatalf("created template = %q, want order_completed", created.TemplateName)
	}
	if !strings.Contains(string(created.Payload), `"name":"order_completed"`) {
		t.Fatalf("created payload = %s, want the outbound request body", created.Payload)
	}
	if !strings.Contains(string(created.Payload), `"to":"+15551234567"`) {
		t.Fatalf("created payload = %s, want recipient phone", created.Payload)
	}

	if sender.callCount() != 1 {
		t.Fatalf("send calls = %d, want 1", sender.callCount())
	}
	call := sender.calls[0]
	if call.language != "en_US" {
		t.Fatalf("language = %q, want en_US", call.language)
	}
	wantVars := []string{"1042", "Ada", "Ordercast Store"}
	if len(call.variables) != len(wantVars) {
		t.Fatalf("variables = %v, want %v", call.variables, wantVars)
	}
	for i := range wantVars {
		if call.variables[i] != wantVars[i] {
			t.Fatalf("variables[%d] = %q, want %q", i, call.variables[i], wantVars[i])
		}
	}

	updates := logs.updatesFor(created.ID)
	if len(updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(updates))
	}
	if updates[0].Status == nil || *updates[0].Status != domain.StatusSent {
		t.Fatalf("update status = %v, want sent", updates[0].Status)
	}
	if updates[0].ProviderMessageID == nil || *updates[0].ProviderMessageID != "wamid.OK1" {
		t.Fatalf("provider message id = %v, want wamid.OK1", updates[0].ProviderMessageID)
	}

	if len(scheduler.delayedJobs()) != 0 {
		t.Fatal("no retry should be scheduled after success")
	}
}

func TestExecuteSendFailureSchedulesRetry(t *testing.T) {
	t.Parallel()

	logs := newFakeLogRepo()
	mappings := &fakeMappingRepo{
		findByEventFn: func(ctx context.Context, eventKey string) (*domain.DispatchMapping, error) {
			return testMapping(), nil
		},
	}
	orders := &fakeOrderSource{
		getByIDFn: func(ctx context.Context, id int64) (*domain.Order, error) {
			return testOrder(), nil
		},
	}
	sender := &fakeSender{
		sendFn: func(ctx context.Context, phoneE164, templateName, language string, variables []string) provider.SendResult {
			return provider.SendResult{Success: false, ErrorCode: "131047", ErrorMessage: "Re-engagement message"}
		},
	}
	scheduler := &fakeScheduler{}
	svc := newTestService(t, logs, mappings, orders, sender, scheduler, nil)

	err := svc.ExecuteSend(context.Background(), queue.SendJob{OrderID: 42, EventKey: domain.EventOrderCompleted, Attempt: 0})
	if err != nil {
		t.Fatalf("ExecuteSend() error = %v", err)
	}

	updates := logs.updatesFor(1)
	if len(updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(updates))
	}
	if updates[0].Status == nil || *updates[0].Status != domain.StatusFailed {
		t.Fatalf("update status = %v, want failed", updates[0].Status)
	}
	if updates[0].ErrorCode == nil || *updates[0].ErrorCode != "131047" {
		t.Fatalf("error code = %v, want 131047", updates[0].ErrorCode)
	}
	if updates[0].ErrorMessage == nil || *updates[0].ErrorMessage != "Re-engagement message" {
		t.Fatalf("error message = %v, want provider message", updates[0].ErrorMessage)
	}

	delayed := scheduler.delayedJobs()
	if len(delayed) != 1 {
		t.Fatalf("delayed jobs = %d, want 1", len(delayed))
	}
	if delayed[0].job.Attempt != 1 {
		t.Fatalf("retry attempt = %d, want 1", delayed[0].job.Attempt)
	}
	if delayed[0].delaySeconds != 10 {
		t.Fatalf("retry delay = %d, want 10", delayed[0].delaySeconds)
	}
}

func TestExecuteSendFailureDefaultsErrorMessage(t *testing.T) {
	t.Parallel()

	logs := newFakeLogRepo()
	mappings := &fakeMappingRepo{
		findByEventFn: func(ctx context.Context, eventKey string) (*domain.DispatchMapping, error) {
			return testMapping(), nil
		},
	}
	orders := &fakeOrderSource{
		getByIDFn: func(ctx context.Context, id int64) (*domain.Order, error) {
			return testOrder(), nil
		},
	}
	sender := &fakeSender{
		sendFn: func(ctx context.Context, phoneE164, templateName, language string, variables []string) provider.SendResult {
			return provider.SendResult{Success: false}
		},
	}
	svc := newTestService(t, logs, mappings, orders, sender, &fakeScheduler{}, nil)

	if err := svc.ExecuteSend(context.Background(), queue.SendJob{OrderID: 42, EventKey: domain.EventOrderCompleted}); err != nil {
		t.Fatalf("ExecuteSend() error = %v", err)
	}

	updates := logs.updatesFor(1)
	if len(updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(updates))
	}
	if updates[0].ErrorMessage == nil || *updates[0].ErrorMessage != "Unknown error" {
		t.Fatalf("error message = %v, want Unknown error", updates[0].ErrorMessage)
	}
}

func TestExecuteSendRetriesExhausted(t *testing.T) {
	t.Parallel()

	logs := newFakeLogRepo()
	mappings := &fakeMappingRepo{
		findByEventFn: func(ctx context.Context, eventKey string) (*domain.DispatchMapping, error) {
			return testMapping(), nil
		},
	}
	orders := &fakeOrderSource{
		getByIDFn: func(ctx context.Context, id int64) (*domain.Order, error) {
			return testOrder(), nil
		},
	}
	sender := &fakeSender{
		sendFn: func(ctx context.Context, phoneE164, templateName, language string, variables []string) provider.SendResult {
			return provider.SendResult{Success: false, ErrorMessage: "still failing"}
		},
	}
	scheduler := &fakeScheduler{}
	svc := newTestService(t, logs, mappings, orders, sender, scheduler, nil)

	// Third attempt (attempt index 2 with 2 retries allowed) is final.
	err := svc.ExecuteSend(context.Background(), queue.SendJob{OrderID: 42, EventKey: domain.EventOrderCompleted, Attempt: 2})
	if err != nil {
		t.Fatalf("ExecuteSend() error = %v", err)
	}

	if logs.createdCount() != 1 {
		t.Fatalf("created rows = %d, want 1", logs.createdCount())
	}
	if len(scheduler.delayedJobs()) != 0 {
		t.Fatal("no retry should be scheduled after the final attempt")
	}
}

func TestExecuteSendFailureSequenceStopsAfterThreeRows(t *testing.T) {
	t.Parallel()

	logs := newFakeLogRepo()
	mappings := &fakeMappingRepo{
		findByEventFn: func(ctx context.Context, eventKey string) (*domain.DispatchMapping, error) {
			return testMapping(), nil
		},
	}
	orders := &fakeOrderSource{
		getByIDFn: func(ctx context.Context, id int64) (*domain.Order, error) {
			return testOrder(), nil
		},
	}
	sender := &fakeSender{
		sendFn: func(ctx context.Context, phoneE164, templateName, language string, variables []string) provider.SendResult {
			return provider.SendResult{Success: false, ErrorMessage: "still failing"}
		},
	}
	scheduler := &fakeScheduler{}
	svc := newTestService(t, logs, mappings, orders, sender, scheduler, nil)

	// Drain the retry chain the way the worker would: each delayed job is
	// fed back in until no further retry is scheduled.
	job := queue.SendJob{OrderID: 42, EventKey: domain.EventOrderCompleted, Attempt: 0}
	for {
		if err := svc.ExecuteSend(context.Background(), job); err != nil {
			t.Fatalf("ExecuteSend() attempt %d error = %v", job.Attempt, err)
		}
		delayed := scheduler.delayedJobs()
		if len(delayed) <= job.Attempt {
			break
		}
		job = delayed[len(delayed)-1].job
	}

	if logs.createdCount() != 3 {
		t.Fatalf("created rows = %d, want 3", logs.createdCount())
	}
	for id := int64(1); id <= 3; id++ {
		updates := logs.updatesFor(id)
		if len(updates) != 1 {
			t.Fatalf("row %d updates = %d, want 1", id, len(updates))
		}
		if updates[0].Status == nil || *updates[0].Status != domain.StatusFailed {
			t.Fatalf("row %d status = %v, want failed", id, updates[0].Status)
		}
	}

	delayed := scheduler.delayedJobs()
	if len(delayed) != 2 {
		t.Fatalf("scheduled retries = %d, want 2", len(delayed))
	}
	for i, d := range delayed {
		if d.job.Attempt != i+1 {
			t.Fatalf("retry %d attempt = %d, want %d", i, d.job.Attempt, i+1)
		}
	}
}

func TestExecuteSendSkipsWithoutPhone(t *testing.T) {
	t.Parallel()

	logs := newFakeLogRepo()
	mappings := &fakeMappingRepo{
		findByEventFn: func(ctx context.Context, eventKey string) (*domain.DispatchMapping, error) {
			return testMapping(), nil
		},
	}
	order := testOrder()
	order.BillingPhone = "123"
	orders := &fakeOrderSource{
		getByIDFn: func(ctx context.Context, id int64) (*domain.Order, error) {
			return order, nil
		},
	}
	sender := &fakeSender{}
	svc := newTestService(t, logs, mappings, orders, sender, &fakeScheduler{}, nil)

	if err := svc.ExecuteSend(context.Background(), queue.SendJob{OrderID: 42, EventKey: domain.EventOrderCompleted}); err != nil {
		t.Fatalf("ExecuteSend() error = %v", err)
	}

	if logs.createdCount() != 0 {
		t.Fatal("no log row should be created for an unusable phone")
	}
	if sender.callCount() != 0 {
		t.Fatal("no send should happen for an unusable phone")
	}
}

func TestExecuteSendSkipsWithoutConsent(t *testing.T) {
	t.Parallel()

	logs := newFakeLogRepo()
	mappings := &fakeMappingRepo{
		findByEventFn: func(ctx context.Context, eventKey string) (*domain.DispatchMapping, error) {
			return testMapping(), nil
		},
	}
	orders := &fakeOrderSource{
		getByIDFn: func(ctx context.Context, id int64) (*domain.Order, error) {
			return testOrder(), nil
		},
	}
	sender := &fakeSender{}
	consent := &fakeConsentPolicy{
		allowFn: func(ctx context.Context, phoneE164 string) (bool, error) {
			return false, nil
		},
	}
	svc := newTestService(t, logs, mappings, orders, sender, &fakeScheduler{}, consent)

	if err := svc.ExecuteSend(context.Background(), queue.SendJob{OrderID: 42, EventKey: domain.EventOrderCompleted}); err != nil {
		t.Fatalf("ExecuteSend() error = %v", err)
	}

	if logs.createdCount() != 0 {
		t.Fatal("no log row should be created without consent")
	}
	if sender.callCount() != 0 {
		t.Fatal("no send should happen without consent")
	}
}

func TestExecuteSendSkipsWhenMappingGone(t *testing.T) {
	t.Parallel()

	logs := newFakeLogRepo()
	sender := &fakeSender{}
	svc := newTestService(t, logs, &fakeMappingRepo{}, &fakeOrderSource{}, sender, &fakeScheduler{}, nil)

	if err := svc.ExecuteSend(context.Background(), queue.SendJob{OrderID: 42, EventKey: domain.EventOrderCompleted}); err != nil {
		t.Fatalf("ExecuteSend() error = %v", err)
	}

	if logs.createdCount() != 0 {
		t.Fatal("no log row should be created when the mapping is gone")
	}
	if sender.callCount() != 0 {
		t.Fatal("no send should happen when the mapping is gone")
	}
}

func TestExecuteSendReturnsInfraErrors(t *testing.T) {
	t.Parallel()

	mappings := &fakeMappingRepo{
		findByEventFn: func(ctx context.Context, eventKey string) (*domain.DispatchMapping, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := newTestService(t, newFakeLogRepo(), mappings, &fakeOrderSource{}, &fakeSender{}, &fakeScheduler{}, nil)

	err := svc.ExecuteSend(context.Background(), queue.SendJob{OrderID: 42, EventKey: domain.EventOrderCompleted})
	if err == nil {
		t.Fatal("infrastructure failure should propagate for redelivery")
	}
}
