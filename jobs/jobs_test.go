package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/depot/internal/delivery/orders"
	jobmetrics "github.com/odyssey-erp/depot/internal/jobs"
	"github.com/odyssey-erp/depot/internal/ledger"
	"github.com/odyssey-erp/depot/internal/notify"
)

type stubVerifier struct {
	broken map[ledger.Scope][]ledger.Report
	err    error
	calls  []ledger.Scope
}

func (s *stubVerifier) VerifyAll(_ context.Context, scope ledger.Scope) (int, []ledger.Report, error) {
	s.calls = append(s.calls, scope)
	if s.err != nil {
		return 0, nil, s.err
	}
	return 3, s.broken[scope], nil
}

func TestLedgerIntegrityScansBothScopes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	verifier := &stubVerifier{broken: map[ledger.Scope][]ledger.Report{
		ledger.ScopeDriver: {{
			Scope:   ledger.ScopeDriver,
			OwnerID: 4,
			Balance: decimal.NewFromInt(-50),
			Sum:     decimal.NewFromInt(-40),
		}},
	}}
	job := NewLedgerIntegrityJob(verifier, nil, metrics)

	task, err := NewLedgerIntegrityTask(LedgerIntegrityPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Equal(t, []ledger.Scope{ledger.ScopeCustomer, ledger.ScopeDriver}, verifier.calls)
	require.Equal(t, float64(1), counterValue(t, reg, "depot_ledger_mismatches_total"))
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestLedgerIntegritySingleScope(t *testing.T) {
	verifier := &stubVerifier{}
	job := NewLedgerIntegrityJob(verifier, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewLedgerIntegrityTask(LedgerIntegrityPayload{Scope: "customer"})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []ledger.Scope{ledger.ScopeCustomer}, verifier.calls)
}

func TestLedgerIntegrityRejectsUnknownScope(t *testing.T) {
	job := NewLedgerIntegrityJob(&stubVerifier{}, nil, nil)
	task := asynq.NewTask(TaskLedgerIntegrity, []byte(`{"scope":"supplier"}`))
	require.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
}

func TestLedgerIntegrityPropagatesErrors(t *testing.T) {
	boom := errors.New("db down")
	job := NewLedgerIntegrityJob(&stubVerifier{err: boom}, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewLedgerIntegrityTask(LedgerIntegrityPayload{})
	require.NoError(t, err)
	require.ErrorIs(t, job.Handle(context.Background(), task), boom)
}

type recordingSender struct {
	pushes []notify.DriverPush
	err    error
}

func (s *recordingSender) Send(_ context.Context, push notify.DriverPush) error {
	s.pushes = append(s.pushes, push)
	return s.err
}

func TestDriverPushDeliversPayload(t *testing.T) {
	sender := &recordingSender{}
	job := NewDriverPushJob(sender, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	push := notify.DriverPush{DriverID: 9, Title: "New deliveries", Body: "2 orders assigned", OrderIDs: []int64{1, 2}}
	task, err := NewDriverPushTask(push)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []notify.DriverPush{push}, sender.pushes)
}

func TestDriverPushSkipsMalformedPayload(t *testing.T) {
	sender := &recordingSender{}
	job := NewDriverPushJob(sender, nil, nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskDriverPush, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
	err = job.Handle(context.Background(), asynq.NewTask(TaskDriverPush, []byte(`{"driver_id":0}`)))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Empty(t, sender.pushes)
}

func TestDriverPushRetriesSenderFailure(t *testing.T) {
	boom := errors.New("gateway timeout")
	job := NewDriverPushJob(&recordingSender{err: boom}, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewDriverPushTask(notify.DriverPush{DriverID: 3, Title: "t"})
	require.NoError(t, err)
	require.ErrorIs(t, job.Handle(context.Background(), task), boom)
}

func TestDriverPushDefaultsToLogSender(t *testing.T) {
	job := NewDriverPushJob(nil, nil, nil)
	require.IsType(t, LogSender{}, job.Sender)
}

type stubGenerator struct {
	got    orders.GenerateRequest
	result orders.GenerateResult
	err    error
}

func (s *stubGenerator) Generate(_ context.Context, req orders.GenerateRequest) (orders.GenerateResult, error) {
	s.got = req
	return s.result, s.err
}

func TestGenerateOrdersDefaultsToTomorrow(t *testing.T) {
	gen := &stubGenerator{result: orders.GenerateResult{BatchID: "b", Batches: 1, OrderIDs: []int64{5}}}
	job := NewGenerateOrdersJob(gen, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	job.clock = func() time.Time { return time.Date(2024, 6, 2, 22, 15, 0, 0, time.UTC) }

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskOrdersGenerate, nil)))
	require.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), gen.got.Date)
}

func TestGenerateOrdersUsesPayload(t *testing.T) {
	gen := &stubGenerator{}
	job := NewGenerateOrdersJob(gen, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewGenerateOrdersTask(GenerateOrdersPayload{Date: "2024-07-01", CustomerIDs: []int64{1, 2}, ActorID: 77})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), gen.got.Date)
	require.Equal(t, []int64{1, 2}, gen.got.CustomerIDs)
	require.Equal(t, int64(77), gen.got.ActorID)
}

func TestGenerateOrdersSkipsBadDate(t *testing.T) {
	job := NewGenerateOrdersJob(&stubGenerator{}, nil, nil)
	task := asynq.NewTask(TaskOrdersGenerate, []byte(`{"date":"03/06/2024"}`))
	require.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
}

func TestGenerateOrdersReturnsFailureForRetry(t *testing.T) {
	boom := errors.New("batch 2 failed")
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	job := NewGenerateOrdersJob(&stubGenerator{err: boom}, nil, metrics)

	require.ErrorIs(t, job.Handle(context.Background(), asynq.NewTask(TaskOrdersGenerate, nil)), boom)
	require.Equal(t, float64(1), counterValue(t, reg, "depot_jobs_failures_total"))
}

type stubEnqueuer struct {
	generate  []GenerateOrdersPayload
	integrity []LedgerIntegrityPayload
	err       error
}

func (s *stubEnqueuer) EnqueueGenerateOrders(_ context.Context, payload GenerateOrdersPayload) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.generate = append(s.generate, payload)
	return &asynq.TaskInfo{ID: "task-1", Queue: QueueDefault}, nil
}

func (s *stubEnqueuer) EnqueueLedgerIntegrity(_ context.Context, payload LedgerIntegrityPayload) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.integrity = append(s.integrity, payload)
	return &asynq.TaskInfo{ID: "task-2", Queue: QueueDefault}, nil
}

func newJobsRouter(enq Enqueuer) http.Handler {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, enq, nil).MountRoutes)
	return r
}

func TestHandlerHealthWithoutInspector(t *testing.T) {
	rr := httptest.NewRecorder()
	newJobsRouter(nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body queueHealth
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, QueueDefault, body.Queue)
	require.Zero(t, body.Pending)
}

func TestHandlerTriggersGeneration(t *testing.T) {
	enq := &stubEnqueuer{}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/jobs/orders/generate", strings.NewReader(`{"date":"2024-06-03"}`))
	newJobsRouter(enq).ServeHTTP(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Contains(t, rr.Body.String(), `"task_id":"task-1"`)
	require.Equal(t, []GenerateOrdersPayload{{Date: "2024-06-03"}}, enq.generate)
}

func TestHandlerRejectsBadGenerationDate(t *testing.T) {
	enq := &stubEnqueuer{}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/jobs/orders/generate", strings.NewReader(`{"date":"tomorrow"}`))
	newJobsRouter(enq).ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Empty(t, enq.generate)
}

func TestHandlerDuplicateGenerationConflicts(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/jobs/orders/generate", nil)
	newJobsRouter(&stubEnqueuer{err: asynq.ErrDuplicateTask}).ServeHTTP(rr, req)
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestHandlerTriggersIntegrity(t *testing.T) {
	enq := &stubEnqueuer{}
	rr := httptest.NewRecorder()
	newJobsRouter(enq).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs/ledger/integrity", nil))
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Len(t, enq.integrity, 1)

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/jobs/ledger/integrity", strings.NewReader(`{"scope":"vendor"}`))
	newJobsRouter(enq).ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Len(t, enq.integrity, 1)
}

func TestHandlerWithoutQueue(t *testing.T) {
	rr := httptest.NewRecorder()
	newJobsRouter(nil).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs/ledger/integrity", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

type stubPruner struct {
	olderThan time.Duration
}

func (s *stubPruner) Cleanup(_ context.Context, olderThan time.Duration) error {
	s.olderThan = olderThan
	return nil
}

func TestIdempotencyCleanupDefaultsRetention(t *testing.T) {
	pruner := &stubPruner{}
	job := &IdempotencyCleanupJob{Pruner: pruner, Metrics: jobmetrics.NewMetrics(prometheus.NewRegistry())}
	require.NoError(t, job.Handle(context.Background(), NewIdempotencyCleanupTask()))
	require.Equal(t, 24*time.Hour, pruner.olderThan)
}
