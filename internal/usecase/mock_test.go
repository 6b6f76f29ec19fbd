//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"edtech-enrollment/internal/domain"
	"edtech-enrollment/internal/domain/model"
	"edtech-enrollment/internal/domain/ports/adapter"
	"edtech-enrollment/internal/domain/ports/repository"
	"edtech-enrollment/internal/infra/worker"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// =============================
// Repositories
// =============================

// ---- MockEnrollmentRepo ----

// MockEnrollmentRepo applies the same conditional updates as the SQL repository.
type MockEnrollmentRepo struct {
	mu   sync.Mutex
	rows map[string]*model.Enrollment

	CreateFunc   func(ctx context.Context, tx repository.Tx, e *model.Enrollment) error
	MarkPaidFunc func(ctx context.Context, tx repository.Tx, id string) (bool, error)
}

var _ repository.EnrollmentRepository = (*MockEnrollmentRepo)(nil)

func NewMockEnrollmentRepo() *MockEnrollmentRepo {
	return &MockEnrollmentRepo{rows: map[string]*model.Enrollment{}}
}

func (m *MockEnrollmentRepo) Create(ctx context.Context, tx repository.Tx, e *model.Enrollment) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, e)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[e.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *e
	m.rows[e.ID] = &cp
	return nil
}

func (m *MockEnrollmentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *MockEnrollmentRepo) MarkPaid(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	if m.MarkPaidFunc != nil {
		return m.MarkPaidFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok || e.Status != model.EnrollmentStatusPending {
		return false, nil
	}
	e.Status = model.EnrollmentStatusPaid
	return true, nil
}

func (m *MockEnrollmentRepo) MarkActive(ctx context.Context, tx repository.Tx, id, code string, next *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok || e.Status == model.EnrollmentStatusCancelled {
		return false, nil
	}
	e.Status = model.EnrollmentStatusActive
	e.SubscriptionID = &code
	if next != nil {
		e.NextBillingDate = next
	}
	return true, nil
}

func (m *MockEnrollmentRepo) ActivateBySubscription(ctx context.Context, tx repository.Tx, code string, next *time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, e := range m.rows {
		if e.SubscriptionID == nil || *e.SubscriptionID != code {
			continue
		}
		if e.Status != model.EnrollmentStatusPaid && e.Status != model.EnrollmentStatusActive {
			continue
		}
		e.Status = model.EnrollmentStatusActive
		if next != nil {
			e.NextBillingDate = next
		}
		n++
	}
	return n, nil
}

func (m *MockEnrollmentRepo) CancelBySubscription(ctx context.Context, tx repository.Tx, code string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, e := range m.rows {
		if e.SubscriptionID == nil || *e.SubscriptionID != code {
			continue
		}
		if e.Status == model.EnrollmentStatusPaid || e.Status == model.EnrollmentStatusActive {
			e.Status = model.EnrollmentStatusCancelled
			n++
		}
	}
	return n, nil
}

func (m *MockEnrollmentRepo) ListPendingForSweep(ctx context.Context, tx repository.Tx, olderThan, newerThan time.Time, limit int) ([]*model.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Enrollment
	for _, e := range m.rows {
		if e.Status == model.EnrollmentStatusPending && e.CreatedAt.Before(olderThan) && e.CreatedAt.After(newerThan) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockEnrollmentRepo) MarkSwept(ctx context.Context, tx repository.Tx, ids []string, at time.Time) error {
	return nil
}

func (m *MockEnrollmentRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.EnrollmentStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[model.EnrollmentStatus]int{}
	for _, e := range m.rows {
		out[e.Status]++
	}
	return out, nil
}

func (m *MockEnrollmentRepo) exists(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[id]
	return ok
}

func (m *MockEnrollmentRepo) status(id string) model.EnrollmentStatus {
	e, err := m.FindByID(context.Background(), nil, id)
	if err != nil {
		return ""
	}
	return e.Status
}

// ---- MockPaymentRepo ----

type paymentKey struct {
	ref string
	typ model.PaymentType
}

// MockPaymentRepo enforces the (reference, type) unique key with insert-or-ignore.
type MockPaymentRepo struct {
	mu          sync.Mutex
	rows        map[paymentKey]*model.Payment
	enrollments *MockEnrollmentRepo

	InsertIgnoreFunc func(ctx context.Context, tx repository.Tx, p *model.Payment) (bool, error)
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo(enrollments *MockEnrollmentRepo) *MockPaymentRepo {
	return &MockPaymentRepo{rows: map[paymentKey]*model.Payment{}, enrollments: enrollments}
}

func (m *MockPaymentRepo) InsertIgnore(ctx context.Context, tx repository.Tx, p *model.Payment) (bool, error) {
	if m.InsertIgnoreFunc != nil {
		return m.InsertIgnoreFunc(ctx, tx, p)
	}
	// resolve the back-reference like the sub-select does
	if p.EnrollmentRef != nil {
		if !m.enrollments.exists(*p.EnrollmentRef) {
			p.EnrollmentRef = nil
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := paymentKey{p.Reference, p.Type}
	if _, ok := m.rows[k]; ok {
		return false, nil
	}
	cp := *p
	m.rows[k] = &cp
	return true, nil
}

func (m *MockPaymentRepo) FindByReference(ctx context.Context, tx repository.Tx, ref string, typ model.PaymentType) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[paymentKey{ref, typ}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPaymentRepo) ListByEnrollment(ctx context.Context, tx repository.Tx, ref string) ([]*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Payment
	for _, p := range m.rows {
		if p.EnrollmentRef != nil && *p.EnrollmentRef == ref {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockPaymentRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// ---- MockSubscriptionRepo ----

type MockSubscriptionRepo struct {
	mu          sync.Mutex
	rows        map[string]*model.Subscription
	enrollments *MockEnrollmentRepo

	UpsertFunc func(ctx context.Context, tx repository.Tx, s *model.Subscription) error
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func NewMockSubscriptionRepo(enrollments *MockEnrollmentRepo) *MockSubscriptionRepo {
	return &MockSubscriptionRepo{rows: map[string]*model.Subscription{}, enrollments: enrollments}
}

func (m *MockSubscriptionRepo) Upsert(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, tx, s)
	}
	ref := s.EnrollmentRef
	if ref != nil {
		if !m.enrollments.exists(*ref) {
			ref = nil
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rows[s.Code]
	if !ok {
		cp := *s
		cp.EnrollmentRef = ref
		m.rows[s.Code] = &cp
		return nil
	}
	if s.Email != "" {
		cur.Email = s.Email
	}
	if s.PlanCode != "" {
		cur.PlanCode = s.PlanCode
	}
	cur.Status = s.Status
	if s.NextBillingDate != nil {
		cur.NextBillingDate = s.NextBillingDate
	}
	if ref != nil {
		cur.EnrollmentRef = ref
	}
	return nil
}

func (m *MockSubscriptionRepo) SetStatus(ctx context.Context, tx repository.Tx, code string, status model.SubscriptionStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rows[code]
	if !ok {
		return false, nil
	}
	cur.Status = status
	return true, nil
}

func (m *MockSubscriptionRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockSubscriptionRepo) FindByEnrollment(ctx context.Context, tx repository.Tx, ref string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.rows {
		if s.EnrollmentRef != nil && *s.EnrollmentRef == ref {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ---- MockDeliveryLog ----

type MockDeliveryLog struct {
	mu   sync.Mutex
	done map[string]bool

	SeenErr error
}

var _ repository.DeliveryLog = (*MockDeliveryLog)(nil)

func NewMockDeliveryLog() *MockDeliveryLog { return &MockDeliveryLog{done: map[string]bool{}} }

func (m *MockDeliveryLog) Seen(ctx context.Context, kind, key string) (bool, error) {
	if m.SeenErr != nil {
		return false, m.SeenErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done[kind+":"+key], nil
}

func (m *MockDeliveryLog) MarkDone(ctx context.Context, kind, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.done[kind+":"+key] = true
	return nil
}

// ---- MockTxManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc overrides it.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// =============================
// Adapters
// =============================

// ---- MockPaymentGateway ----

type MockPaymentGateway struct {
	mu       sync.Mutex
	Requests []adapter.InitializeRequest

	InitializeFunc func(ctx context.Context, req adapter.InitializeRequest) (*adapter.InitializeResult, error)
	VerifyFunc     func(ctx context.Context, reference string) (*adapter.VerifyResult, error)
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (m *MockPaymentGateway) Name() string { return "mock" }

func (m *MockPaymentGateway) InitializeTransaction(ctx context.Context, req adapter.InitializeRequest) (*adapter.InitializeResult, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()
	if m.InitializeFunc != nil {
		return m.InitializeFunc(ctx, req)
	}
	return &adapter.InitializeResult{
		AuthorizationURL: "https://checkout.example/" + req.Reference,
		AccessCode:       "access-" + req.Reference,
		Reference:        req.Reference,
		Message:          "Authorization URL created",
	}, nil
}

func (m *MockPaymentGateway) VerifyTransaction(ctx context.Context, reference string) (*adapter.VerifyResult, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, reference)
	}
	return &adapter.VerifyResult{Reference: reference, Status: "abandoned"}, nil
}

// ---- MockDispatcher ----

type MockDispatcher struct {
	mu   sync.Mutex
	Sent []adapter.Notification
}

func (m *MockDispatcher) Dispatch(n adapter.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, n)
}

func (m *MockDispatcher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// ---- MockNotifier ----

type MockNotifier struct {
	mu       sync.Mutex
	Received []adapter.Notification
	Err      error
}

func (m *MockNotifier) Name() string { return "mock" }

func (m *MockNotifier) Notify(ctx context.Context, n adapter.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Received = append(m.Received, n)
	return m.Err
}

// ---- inlineSubmitter runs tasks synchronously ----

type inlineSubmitter struct {
	err error
}

func (s inlineSubmitter) Submit(task worker.Task) error {
	if s.err != nil {
		return s.err
	}
	_ = task(context.Background())
	return nil
}
