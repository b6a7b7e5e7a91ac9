package timeout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/zenpay/payment-gateway/pkg/logger"
	"github.com/zenpay/payment-gateway/pkg/redis"
	"github.com/zenpay/payment-gateway/pkg/worker"
)

var (
	// ErrDuplicateJob is returned when a job with the same id is already
	// scheduled or executing.
	ErrDuplicateJob = errors.New("a job with this id is already scheduled")

	ErrHandlerRequired = errors.New("job handler is required")
)

// JobHandler runs the body of a due job. A non-nil error re-schedules the job
// with backoff until the retry budget is exhausted.
type JobHandler func(ctx context.Context, jobID string, job *Job) error

type QueueConfig struct {
	// KeyPrefix namespaces the redis keys, e.g. "paygate:".
	KeyPrefix      string
	PollInterval   time.Duration
	BatchSize      int64
	MaxRetries     int
	RetryBackoff   time.Duration // base delay, doubled per attempt
	HandlerTimeout time.Duration
	Workers        int
}

// DelayedQueue schedules jobs to fire once after a delay. Entries live in a
// sorted set keyed by due time with payloads in a companion hash; a dead hash
// retains jobs that exhausted their retries so they can be inspected instead
// of vanishing.
type DelayedQueue struct {
	adapter redis.RedisAdapter
	config  QueueConfig
	handler JobHandler
	workers *worker.WorkerManager
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type QueueStats struct {
	Scheduled int64
	Dead      int64
}

func NewDelayedQueue(adapter redis.RedisAdapter, config QueueConfig) *DelayedQueue {
	if config.PollInterval == 0 {
		config.PollInterval = 1 * time.Second
	}
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.RetryBackoff == 0 {
		config.RetryBackoff = 5 * time.Second
	}
	if config.HandlerTimeout == 0 {
		config.HandlerTimeout = 30 * time.Second
	}
	if config.Workers == 0 {
		config.Workers = 4
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &DelayedQueue{
		adapter: adapter,
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (q *DelayedQueue) scheduleKey() string { return q.config.KeyPrefix + "timeout:schedule" }
func (q *DelayedQueue) payloadKey() string  { return q.config.KeyPrefix + "timeout:payload" }
func (q *DelayedQueue) deadKey() string     { return q.config.KeyPrefix + "timeout:dead" }

// Schedule enqueues one job to fire after delay. Scheduling a job id that is
// already live fails with ErrDuplicateJob; the payload hash is the uniqueness
// guard, written before the schedule entry.
func (q *DelayedQueue) Schedule(ctx context.Context, jobID string, job *Job, delay time.Duration) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job payload: %w", err)
	}

	ok, err := q.adapter.HSetNX(q.payloadKey(), jobID, data)
	if err != nil {
		return fmt.Errorf("store job payload: %w", err)
	}
	if !ok {
		return ErrDuplicateJob
	}

	dueAt := time.Now().Add(delay).UnixMilli()
	if err := q.adapter.ZAdd(q.scheduleKey(), float64(dueAt), jobID); err != nil {
		_ = q.adapter.HDel(q.payloadKey(), jobID)
		return fmt.Errorf("schedule job: %w", err)
	}

	return nil
}

// Cancel removes a scheduled job. Absence is not an error: the job may have
// already fired or never been scheduled. A job that is mid-execution is not
// stopped; the handler's own state re-check is what keeps that safe.
func (q *DelayedQueue) Cancel(ctx context.Context, jobID string) (bool, error) {
	removed, err := q.adapter.ZRem(q.scheduleKey(), jobID)
	if err != nil {
		return false, fmt.Errorf("cancel job: %w", err)
	}
	if err := q.adapter.HDel(q.payloadKey(), jobID); err != nil {
		logger.Warn("failed to drop cancelled job payload", "job_id", jobID, "error", err)
	}
	return removed > 0, nil
}

// Run starts the poller and the execution pool. Due jobs are claimed with
// ZREM so each one fires on exactly one worker even with several consumers on
// the same keys; claimed jobs are handed to the pool for execution.
func (q *DelayedQueue) Run(handler JobHandler) error {
	if handler == nil {
		return ErrHandlerRequired
	}
	q.handler = handler

	q.workers = worker.NewWorkerManager(1024, q.config.Workers, nil)
	q.workers.SetWorker(func(workerIndex int, job interface{}) {
		jobID, ok := job.(string)
		if !ok {
			return
		}
		q.execute(jobID)
	})
	go func() {
		_ = q.workers.Start()
	}()

	q.wg.Add(1)
	go q.pollLoop()
	return nil
}

func (q *DelayedQueue) pollLoop() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.processDue()
		}
	}
}

func (q *DelayedQueue) processDue() {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	ids, err := q.adapter.ZRangeByScore(q.scheduleKey(), "-inf", now, 0, q.config.BatchSize)
	if err != nil {
		logger.Error("failed to read due jobs", "error", err)
		return
	}

	for _, jobID := range ids {
		claimed, err := q.adapter.ZRem(q.scheduleKey(), jobID)
		if err != nil {
			logger.Error("failed to claim job", "job_id", jobID, "error", err)
			continue
		}
		if claimed == 0 {
			// another worker got there first
			continue
		}
		q.workers.Enqueue(jobID)
	}
}

func (q *DelayedQueue) execute(jobID string) {
	data, err := q.adapter.HGet(q.payloadKey(), jobID)
	if err != nil {
		if err != redis.NilError {
			logger.Error("failed to load job payload", "job_id", jobID, "error", err)
		}
		return
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		logger.Error("dropping undecodable job payload", "job_id", jobID, "error", err)
		_ = q.adapter.HDel(q.payloadKey(), jobID)
		return
	}

	ctx, cancel := context.WithTimeout(q.ctx, q.config.HandlerTimeout)
	err = q.handler(ctx, jobID, &job)
	cancel()

	if err == nil {
		if err := q.adapter.HDel(q.payloadKey(), jobID); err != nil {
			logger.Warn("failed to drop completed job payload", "job_id", jobID, "error", err)
		}
		return
	}

	q.retry(jobID, &job, err)
}

// retry re-schedules a failed job with exponential backoff, or retires it to
// the dead hash once the attempt budget is spent.
func (q *DelayedQueue) retry(jobID string, job *Job, cause error) {
	job.Attempts++

	if job.Attempts >= q.config.MaxRetries {
		logger.Error("job exhausted retries, retaining for inspection",
			"job_id", jobID,
			"attempts", job.Attempts,
			"error", cause)
		data, _ := json.Marshal(job)
		if err := q.adapter.HSet(q.deadKey(), jobID, data); err != nil {
			logger.Error("failed to retain dead job", "job_id", jobID, "error", err)
		}
		_ = q.adapter.HDel(q.payloadKey(), jobID)
		return
	}

	backoff := q.config.RetryBackoff * time.Duration(1<<(job.Attempts-1))
	logger.Warn("job failed, scheduling retry",
		"job_id", jobID,
		"attempt", job.Attempts,
		"backoff", backoff.String(),
		"error", cause)

	data, err := json.Marshal(job)
	if err != nil {
		logger.Error("failed to marshal job for retry", "job_id", jobID, "error", err)
		return
	}
	if err := q.adapter.HSet(q.payloadKey(), jobID, data); err != nil {
		logger.Error("failed to update job payload for retry", "job_id", jobID, "error", err)
		return
	}
	dueAt := time.Now().Add(backoff).UnixMilli()
	if err := q.adapter.ZAdd(q.scheduleKey(), float64(dueAt), jobID); err != nil {
		logger.Error("failed to re-schedule job", "job_id", jobID, "error", err)
	}
}

func (q *DelayedQueue) GetStats() (*QueueStats, error) {
	scheduled, err := q.adapter.ZCard(q.scheduleKey())
	if err != nil {
		return nil, err
	}
	dead, err := q.adapter.HLen(q.deadKey())
	if err != nil {
		return nil, err
	}
	return &QueueStats{Scheduled: scheduled, Dead: dead}, nil
}

func (q *DelayedQueue) Stop(timeout time.Duration) error {
	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		if q.workers != nil {
			// let the pool drain claimed jobs before telling it to exit
			deadline := time.Now().Add(timeout / 2)
			for q.workers.GetUnreadCount() > 0 && time.Now().Before(deadline) {
				time.Sleep(10 * time.Millisecond)
			}
			q.workers.Exit()
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for queue to stop")
	}
}
