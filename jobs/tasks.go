package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/staffdesk/staffdesk/internal/fiscal"
	jobmetrics "github.com/staffdesk/staffdesk/internal/jobs"
	"github.com/staffdesk/staffdesk/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskFiscalCopyForward copies the prior year's activity set into a fiscal year.
	TaskFiscalCopyForward = "fiscal:copy_forward"

	systemActor = "system"
)

// CopyForwardPayload describes one copy-forward run. A zero YearID targets
// the current fiscal year.
type CopyForwardPayload struct {
	YearID             int64  `json:"year_id"`
	IncludeClientLinks bool   `json:"include_client_links"`
	Actor              string `json:"actor"`
}

// NewCopyForwardTask constructs an Asynq task.
func NewCopyForwardTask(payload CopyForwardPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFiscalCopyForward, data), nil
}

// CopyForwarder is the part of the fiscal service the job depends on.
type CopyForwarder interface {
	Current(ctx context.Context) (fiscal.FiscalYear, bool, error)
	CopyForward(ctx context.Context, actor string, destYearID int64, includeClientLinks bool) (fiscal.CopyResult, error)
}

// CopyForwardJob runs copy-forward outside the request path.
type CopyForwardJob struct {
	Service CopyForwarder
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewCopyForwardJob initialises the copy-forward handler.
func NewCopyForwardJob(service CopyForwarder, logger *slog.Logger, metrics *jobmetrics.Metrics) *CopyForwardJob {
	return &CopyForwardJob{Service: service, Logger: logger, Metrics: metrics}
}

// Handle executes one copy-forward task. Missing years and missing prior
// years are permanent failures and are not retried.
func (j *CopyForwardJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Service == nil {
		return errors.New("copy forward: handler not configured")
	}
	var payload CopyForwardPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w: %w", err, asynq.SkipRetry)
	}
	if payload.Actor == "" {
		payload.Actor = systemActor
	}

	start := time.Now()
	tracker := j.Metrics.Track(TaskFiscalCopyForward)
	defer func() {
		err = tracker.End(err)
	}()

	yearID := payload.YearID
	if yearID == 0 {
		current, ok, err := j.Service.Current(ctx)
		if err != nil {
			return err
		}
		if !ok {
			j.logger().Info("copy forward skipped, no current fiscal year")
			return nil
		}
		yearID = current.ID
	}

	logger := j.logger().With(
		slog.Int64("year_id", yearID),
		slog.Bool("include_client_links", payload.IncludeClientLinks),
		slog.String("actor", payload.Actor),
	)
	result, err := j.Service.CopyForward(ctx, payload.Actor, yearID, payload.IncludeClientLinks)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) || errors.Is(err, shared.ErrPrecondition) {
			logger.Warn("copy forward rejected", slog.Any("error", err))
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		logger.Error("copy forward failed", slog.Any("error", err))
		return err
	}
	j.Metrics.AddCopied("activity", result.Activities)
	j.Metrics.AddCopied("client_link", result.ClientLinks)
	logger.Info("copy forward completed",
		slog.Int("source_year", result.SourceYear),
		slog.Int("activities", result.Activities),
		slog.Int("client_links", result.ClientLinks),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *CopyForwardJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
