package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staffdesk/staffdesk/internal/fiscal"
	jobmetrics "github.com/staffdesk/staffdesk/internal/jobs"
	"github.com/staffdesk/staffdesk/internal/shared"
)

type stubForwarder struct {
	current    fiscal.FiscalYear
	hasCurrent bool
	result     fiscal.CopyResult
	err        error

	calls  int
	actor  string
	yearID int64
	links  bool
}

func (s *stubForwarder) Current(context.Context) (fiscal.FiscalYear, bool, error) {
	return s.current, s.hasCurrent, nil
}

func (s *stubForwarder) CopyForward(_ context.Context, actor string, yearID int64, links bool) (fiscal.CopyResult, error) {
	s.calls++
	s.actor, s.yearID, s.links = actor, yearID, links
	return s.result, s.err
}

func newTestJob(t *testing.T, svc *stubForwarder) (*CopyForwardJob, *prometheus.Registry) {
	t.Helper()
	registry := prometheus.NewRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCopyForwardJob(svc, logger, jobmetrics.NewMetrics(registry)), registry
}

func TestCopyForwardJobRunsPayload(t *testing.T) {
	svc := &stubForwarder{result: fiscal.CopyResult{SourceYear: 2023, Activities: 2, ClientLinks: 5}}
	job, registry := newTestJob(t, svc)

	task, err := NewCopyForwardTask(CopyForwardPayload{YearID: 7, IncludeClientLinks: true, Actor: "maria"})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	assert.Equal(t, 1, svc.calls)
	assert.Equal(t, "maria", svc.actor)
	assert.Equal(t, int64(7), svc.yearID)
	assert.True(t, svc.links)

	count, err := testutil.GatherAndCount(registry, "staffdesk_copy_forward_rows_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	count, err = testutil.GatherAndCount(registry, "staffdesk_jobs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCopyForwardJobTargetsCurrentYear(t *testing.T) {
	svc := &stubForwarder{current: fiscal.FiscalYear{ID: 12, Year: 2024}, hasCurrent: true}
	job, _ := newTestJob(t, svc)

	task, err := NewCopyForwardTask(CopyForwardPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	assert.Equal(t, int64(12), svc.yearID)
	assert.Equal(t, systemActor, svc.actor)
}

func TestCopyForwardJobWithoutCurrentYearIsNoop(t *testing.T) {
	svc := &stubForwarder{}
	job, _ := newTestJob(t, svc)

	task, err := NewCopyForwardTask(CopyForwardPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Zero(t, svc.calls)
}

func TestCopyForwardJobRetryPolicy(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		skipRetry bool
		failures  int
	}{
		{name: "no prior year", err: fmt.Errorf("copy: %w", shared.ErrPrecondition), skipRetry: true},
		{name: "unknown year", err: fmt.Errorf("year 9: %w", shared.ErrNotFound), skipRetry: true},
		{name: "transient", err: errors.New("connection reset"), skipRetry: false, failures: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			job, registry := newTestJob(t, &stubForwarder{err: tc.err})
			task, err := NewCopyForwardTask(CopyForwardPayload{YearID: 9})
			require.NoError(t, err)

			err = job.Handle(context.Background(), task)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.err)
			assert.Equal(t, tc.skipRetry, errors.Is(err, asynq.SkipRetry))

			count, err := testutil.GatherAndCount(registry, "staffdesk_jobs_failures_total")
			require.NoError(t, err)
			assert.Equal(t, tc.failures, count)
		})
	}
}

func TestCopyForwardJobMalformedPayload(t *testing.T) {
	job, _ := newTestJob(t, &stubForwarder{})
	err := job.Handle(context.Background(), asynq.NewTask(TaskFiscalCopyForward, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func allowAll(next http.Handler) http.Handler { return next }

func TestHealthHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := chi.NewRouter()
	NewHandler(stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 3}}, logger, allowAll).MountRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queue":"default","pending":3,"active":0,"retry":0,"failed":0}`, rec.Body.String())

	r = chi.NewRouter()
	NewHandler(stubInspector{err: errors.New("redis down")}, logger, allowAll).MountRoutes(r)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthHandlerRequiresGuard(t *testing.T) {
	inspector := stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 3}}
	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		})
	}

	for name, guard := range map[string]func(http.Handler) http.Handler{"denying guard": deny, "no guard": nil} {
		t.Run(name, func(t *testing.T) {
			r := chi.NewRouter()
			NewHandler(inspector, nil, guard).MountRoutes(r)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.NotContains(t, rec.Body.String(), "pending")
		})
	}
}
