package timeout

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zenpay/payment-gateway/pkg/redis"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	// Use unique connection name per test to avoid global adapter caching issues
	connName := t.Name() + "-" + mr.Addr()
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func testQueueConfig() QueueConfig {
	return QueueConfig{
		KeyPrefix:      "test:",
		PollInterval:   50 * time.Millisecond,
		BatchSize:      10,
		MaxRetries:     3,
		RetryBackoff:   50 * time.Millisecond,
		HandlerTimeout: 2 * time.Second,
	}
}

func testJob(txID uuid.UUID) *Job {
	return &Job{
		TransactionID:         txID,
		ExternalTransactionID: 123456789,
		UserID:                uuid.New(),
		Amount:                20000,
		CreatedAt:             time.Now().UTC(),
	}
}

func TestDelayedQueue_ScheduleAndFire(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	queue := NewDelayedQueue(adapter, testQueueConfig())

	txID := uuid.New()
	err := queue.Schedule(context.Background(), JobID(txID), testJob(txID), 0)
	require.NoError(t, err)

	fired := make(chan *Job, 1)
	err = queue.Run(func(ctx context.Context, jobID string, job *Job) error {
		assert.Equal(t, JobID(txID), jobID)
		fired <- job
		return nil
	})
	require.NoError(t, err)
	defer queue.Stop(time.Second)

	select {
	case job := <-fired:
		assert.Equal(t, txID, job.TransactionID)
		assert.Equal(t, int64(123456789), job.ExternalTransactionID)
	case <-time.After(2 * time.Second):
		t.Fatal("job did not fire")
	}

	// payload is dropped once the handler succeeds
	assert.Eventually(t, func() bool {
		stats, err := queue.GetStats()
		return err == nil && stats.Scheduled == 0 && stats.Dead == 0
	}, 2*time.Second, 50*time.Millisecond)
}

func TestDelayedQueue_DuplicateSchedule(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	queue := NewDelayedQueue(adapter, testQueueConfig())

	txID := uuid.New()
	err := queue.Schedule(context.Background(), JobID(txID), testJob(txID), time.Minute)
	require.NoError(t, err)

	err = queue.Schedule(context.Background(), JobID(txID), testJob(txID), time.Minute)
	assert.ErrorIs(t, err, ErrDuplicateJob)

	stats, err := queue.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Scheduled)
}

func TestDelayedQueue_FutureJobNotFired(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	queue := NewDelayedQueue(adapter, testQueueConfig())

	txID := uuid.New()
	err := queue.Schedule(context.Background(), JobID(txID), testJob(txID), time.Hour)
	require.NoError(t, err)

	var fired int32
	err = queue.Run(func(ctx context.Context, jobID string, job *Job) error {
		atomic.AddInt32(&fired, 1)
		return nil
	})
	require.NoError(t, err)
	defer queue.Stop(time.Second)

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))

	stats, err := queue.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Scheduled)
}

func TestDelayedQueue_Cancel(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	queue := NewDelayedQueue(adapter, testQueueConfig())
	txID := uuid.New()

	t.Run("cancel scheduled job", func(t *testing.T) {
		err := queue.Schedule(context.Background(), JobID(txID), testJob(txID), time.Minute)
		require.NoError(t, err)

		removed, err := queue.Cancel(context.Background(), JobID(txID))
		require.NoError(t, err)
		assert.True(t, removed)

		stats, err := queue.GetStats()
		require.NoError(t, err)
		assert.Equal(t, int64(0), stats.Scheduled)
	})

	t.Run("cancel absent job is a no-op", func(t *testing.T) {
		removed, err := queue.Cancel(context.Background(), JobID(uuid.New()))
		require.NoError(t, err)
		assert.False(t, removed)
	})

	t.Run("job id can be reused after cancel", func(t *testing.T) {
		err := queue.Schedule(context.Background(), JobID(txID), testJob(txID), time.Minute)
		assert.NoError(t, err)
		_, err = queue.Cancel(context.Background(), JobID(txID))
		assert.NoError(t, err)
	})
}

func TestDelayedQueue_RetryWithBackoff(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	queue := NewDelayedQueue(adapter, testQueueConfig())

	txID := uuid.New()
	err := queue.Schedule(context.Background(), JobID(txID), testJob(txID), 0)
	require.NoError(t, err)

	var attempts int32
	succeeded := make(chan bool, 1)
	err = queue.Run(func(ctx context.Context, jobID string, job *Job) error {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			return assert.AnError
		}
		// the queue carries attempt count across retries
		assert.Equal(t, 2, job.Attempts)
		succeeded <- true
		return nil
	})
	require.NoError(t, err)
	defer queue.Stop(time.Second)

	select {
	case <-succeeded:
	case <-time.After(3 * time.Second):
		t.Fatal("job was not retried to success")
	}
}

func TestDelayedQueue_DeadAfterMaxRetries(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	config := testQueueConfig()
	config.MaxRetries = 2
	queue := NewDelayedQueue(adapter, config)

	txID := uuid.New()
	err := queue.Schedule(context.Background(), JobID(txID), testJob(txID), 0)
	require.NoError(t, err)

	err = queue.Run(func(ctx context.Context, jobID string, job *Job) error {
		return assert.AnError
	})
	require.NoError(t, err)
	defer queue.Stop(time.Second)

	assert.Eventually(t, func() bool {
		stats, err := queue.GetStats()
		return err == nil && stats.Dead == 1 && stats.Scheduled == 0
	}, 3*time.Second, 50*time.Millisecond)
}

func TestDelayedQueue_ExactlyOnceAcrossWorkers(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	// two queues polling the same keys; the ZREM claim means each job
	// fires on exactly one of them
	q1 := NewDelayedQueue(adapter, testQueueConfig())
	q2 := NewDelayedQueue(adapter, testQueueConfig())

	numJobs := 20
	for i := 0; i < numJobs; i++ {
		txID := uuid.New()
		err := q1.Schedule(context.Background(), JobID(txID), testJob(txID), 0)
		require.NoError(t, err)
	}

	var fired int32
	handler := func(ctx context.Context, jobID string, job *Job) error {
		atomic.AddInt32(&fired, 1)
		return nil
	}
	require.NoError(t, q1.Run(handler))
	require.NoError(t, q2.Run(handler))
	defer q1.Stop(time.Second)
	defer q2.Stop(time.Second)

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&fired) == int32(numJobs)
	}, 3*time.Second, 50*time.Millisecond)

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(numJobs), atomic.LoadInt32(&fired))
}

func TestDelayedQueue_Stop(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	queue := NewDelayedQueue(adapter, testQueueConfig())
	err := queue.Run(func(ctx context.Context, jobID string, job *Job) error {
		return nil
	})
	require.NoError(t, err)

	err = queue.Stop(2 * time.Second)
	assert.NoError(t, err)
}
