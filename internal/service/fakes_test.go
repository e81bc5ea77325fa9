package service

import (
	"context"
	"sync"
	"time"

	"github.com/ordercast/wadispatch/internal/domain"
	"github.com/ordercast/wadispatch/internal/provider"
	"github.com/ordercast/wadispatch/internal/queue"
	"github.com/ordercast/wadispatch/internal/repository"
)

type fakeLogRepo struct {
	mu      sync.Mutex
	nextID  int64
	created []*domain.DispatchLog
	updates map[int64][]domain.DispatchLogUpdate

	createFn         func(ctx context.Context, l *domain.DispatchLog) error
	updateFn         func(ctx context.Context, id int64, update domain.DispatchLogUpdate) error
	updateByProvider func(ctx context.Context, providerMsgID string, update domain.DispatchLogUpdate) error
}

func newFakeLogRepo() *fakeLogRepo {
	return &fakeLogRepo{updates: make(map[int64][]domain.DispatchLogUpdate)}
}

func (r *fakeLogRepo) Create(ctx context.Context, l *domain.DispatchLog) error {
	if r.createFn != nil {
		return r.createFn(ctx, l)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	l.ID = r.nextID
	copied := *l
	r.created = append(r.created, &copied)
	return nil
}

func (r *fakeLogRepo) Update(ctx context.Context, id int64, update domain.DispatchLogUpdate) error {
	if r.updateFn != nil {
		return r.updateFn(ctx, id, update)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates[id] = append(r.updates[id], update)
	return nil
}

func (r *fakeLogRepo) GetByID(ctx context.Context, id int64) (*domain.DispatchLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.created {
		if l.ID == id {
			copied := *l
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeLogRepo) FindByProviderMessageID(ctx context.Context, providerMsgID string) (*domain.DispatchLog, error) {
	return nil, domain.ErrNotFound
}

func (r *fakeLogRepo) UpdateByProviderMessageID(ctx context.Context, providerMsgID string, update domain.DispatchLogUpdate) error {
	if r.updateByProvider != nil {
		return r.updateByProvider(ctx, providerMsgID, update)
	}
	return domain.ErrNotFound
}

func (r *fakeLogRepo) List(ctx context.Context, params repository.LogListParams) ([]domain.DispatchLog, int64, error) {
	return nil, 0, nil
}

func (r *fakeLogRepo) StatusCounts(ctx context.Context, since time.Time) (map[domain.Status]int64, error) {
	return map[domain.Status]int64{}, nil
}

func (r *fakeLogRepo) createdCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.created)
}

func (r *fakeLogRepo) updatesFor(id int64) []domain.DispatchLogUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates[id]
}

type fakeMappingRepo struct {
	findByEventFn func(ctx context.Context, eventKey string) (*domain.DispatchMapping, error)
}

func (r *fakeMappingRepo) FindByEvent(ctx context.Context, eventKey string) (*domain.DispatchMapping, error) {
	if r.findByEventFn != nil {
		return r.findByEventFn(ctx, eventKey)
	}
	return nil, domain.ErrNotFound
}

func (r *fakeMappingRepo) GetByID(ctx context.Context, id int64) (*domain.DispatchMapping, error) {
	return nil, domain.ErrNotFound
}

func (r *fakeMappingRepo) Upsert(ctx context.Context, m *domain.DispatchMapping) error {
	return nil
}

func (r *fakeMappingRepo) Delete(ctx context.Context, id int64) error {
	return nil
}

func (r *fakeMappingRepo) List(ctx context.Context) ([]domain.DispatchMapping, error) {
	return nil, nil
}

type fakeOrderSource struct {
	getByIDFn func(ctx context.Context, id int64) (*domain.Order, error)
}

func (s *fakeOrderSource) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	if s.getByIDFn != nil {
		return s.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

type fakeSender struct {
	mu    sync.Mutex
	calls []fakeSendCall

	sendFn func(ctx context.Context, phoneE164, templateName, language string, variables []string) provider.SendResult
}

type fakeSendCall struct {
	phoneE164    string
	templateName string
	language     string
	variables    []string
}

func (s *fakeSender) SendTemplate(ctx context.Context, phoneE164, templateName, language string, variables []string) provider.SendResult {
	s.mu.Lock()
	s.calls = append(s.calls, fakeSendCall{
		phoneE164:    phoneE164,
		templateName: templateName,
		language:     language,
		variables:    variables,
	})
	s.mu.Unlock()

	if s.sendFn != nil {
		return s.sendFn(ctx, phoneE164, templateName, language, variables)
	}
	return provider.SendResult{Success: true, MessageID: "wamid.fake"}
}

func (s *fakeSender) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type fakeScheduler struct {
	mu        sync.Mutex
	immediate []queue.SendJob
	delayed   []delayedJob

	scheduleFn   func(ctx context.Context, job queue.SendJob) error
	scheduleInFn func(ctx context.Context, job queue.SendJob, delaySeconds int) error
}

type delayedJob struct {
	job          queue.SendJob
	delaySeconds int
}

func (s *fakeScheduler) ScheduleSend(ctx context.Context, job queue.SendJob) error {
	if s.scheduleFn != nil {
		return s.scheduleFn(ctx, job)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.immediate = append(s.immediate, job)
	return nil
}

func (s *fakeScheduler) ScheduleSendIn(ctx context.Context, job queue.SendJob, delaySeconds int) error {
	if s.scheduleInFn != nil {
		return s.scheduleInFn(ctx, job, delaySeconds)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delayed = append(s.delayed, delayedJob{job: job, delaySeconds: delaySeconds})
	return nil
}

func (s *fakeScheduler) Close() error { return nil }

func (s *fakeScheduler) immediateJobs() []queue.SendJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]queue.SendJob(nil), s.immediate...)
}

func (s *fakeScheduler) delayedJobs() []delayedJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]delayedJob(nil), s.delayed...)
}

type fakeConsentPolicy struct {
	allowFn func(ctx context.Context, phoneE164 string) (bool, error)
}

func (p *fakeConsentPolicy) Allow(ctx context.Context, phoneE164 string) (bool, error) {
	if p.allowFn != nil {
		return p.allowFn(ctx, phoneE164)
	}
	return true, nil
}

type fakeRateLimiter struct {
	waitFn func(ctx context.Context, scope string) error
}

func (l *fakeRateLimiter) Allow(ctx context.Context, scope string) (bool, error) {
	return true, nil
}

func (l *fakeRateLimiter) Wait(ctx context.Context, scope string) error {
	if l.waitFn != nil {
		return l.waitFn(ctx, scope)
	}
	return nil
}
