package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/staffdesk/staffdesk/internal/shared"
)

const copyForwardUniqueWindow = 10 * time.Minute

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueCopyForward schedules a copy-forward run. A second request for the
// same year while one is still queued is reported as a conflict.
func (c *Client) EnqueueCopyForward(ctx context.Context, actor string, yearID int64, includeClientLinks bool) (string, error) {
	task, err := NewCopyForwardTask(CopyForwardPayload{YearID: yearID, IncludeClientLinks: includeClientLinks, Actor: actor})
	if err != nil {
		return "", err
	}
	info, err := c.client.EnqueueContext(ctx, task, copyForwardOptions(asynq.Unique(copyForwardUniqueWindow))...)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return "", shared.NewPolicyError("copy forward", fmt.Sprintf("a run for fiscal year %d is already queued", yearID))
	}
	if err != nil {
		return "", fmt.Errorf("jobs: enqueue copy forward: %w", err)
	}
	return info.ID, nil
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}

// CopyForwardCron prepares the nightly copy-forward registration for the
// current fiscal year.
func CopyForwardCron(spec string) (CronRegistration, error) {
	task, err := NewCopyForwardTask(CopyForwardPayload{})
	if err != nil {
		return CronRegistration{}, err
	}
	return CronRegistration{Spec: spec, Task: task, Options: copyForwardOptions()}, nil
}

func copyForwardOptions(extra ...asynq.Option) []asynq.Option {
	return append([]asynq.Option{asynq.Queue(QueueDefault), asynq.MaxRetry(3), asynq.Timeout(5 * time.Minute)}, extra...)
}
