package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenpay/payment-gateway/internal/model"
)

func seedUser(t *testing.T, db *testDB) *model.User {
	t.Helper()
	repo := NewUserRepository(db.DB)
	user, err := repo.Create(context.Background(), &model.User{
		ID:       uuid.New(),
		Email:    uuid.NewString() + "@example.com",
		FullName: "Test User",
		Role:     "user",
		Active:   true,
	})
	require.NoError(t, err)
	return user
}

func TestTransactionRepository_Create(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTransactionRepository(db.DB)
	ctx := context.Background()
	user := seedUser(t, db)

	t.Run("create transaction successfully", func(t *testing.T) {
		txn := &model.Transaction{
			ID:       uuid.New(),
			UserID:   user.ID,
			Amount:   50000,
			Currency: "VND",
			Status:   model.StatusPending,
		}

		created, err := repo.Create(ctx, txn)
		require.NoError(t, err)
		assert.Equal(t, txn.ID, created.ID)
		assert.Equal(t, user.ID, created.UserID)
		assert.Equal(t, int64(50000), created.Amount)
		assert.Equal(t, model.StatusPending, created.Status)
		assert.NotZero(t, created.CreatedAt)
	})
}

func TestTransactionRepository_GetByID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTransactionRepository(db.DB)
	ctx := context.Background()
	user := seedUser(t, db)

	created, err := repo.Create(ctx, &model.Transaction{
		ID:       uuid.New(),
		UserID:   user.ID,
		Amount:   1000,
		Currency: "VND",
		Status:   model.StatusPending,
	})
	require.NoError(t, err)

	t.Run("found", func(t *testing.T) {
		got, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrTransactionNotFound)
	})
}

func TestTransactionRepository_GetByExternalRef(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTransactionRepository(db.DB)
	ctx := context.Background()
	user := seedUser(t, db)

	ref := int64(123456789)
	created, err := repo.Create(ctx, &model.Transaction{
		ID:          uuid.New(),
		UserID:      user.ID,
		Amount:      1000,
		Currency:    "VND",
		Status:      model.StatusAwaitingPayment,
		ExternalRef: &ref,
	})
	require.NoError(t, err)

	t.Run("found", func(t *testing.T) {
		got, err := repo.GetByExternalRef(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.GetByExternalRef(ctx, 999999999)
		assert.ErrorIs(t, err, ErrTransactionNotFound)
	})
}

func TestTransactionRepository_UpdateFields(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTransactionRepository(db.DB)
	ctx := context.Background()
	user := seedUser(t, db)

	created, err := repo.Create(ctx, &model.Transaction{
		ID:       uuid.New(),
		UserID:   user.ID,
		Amount:   1000,
		Currency: "VND",
		Status:   model.StatusPending,
	})
	require.NoError(t, err)

	t.Run("update status and external ref", func(t *testing.T) {
		err := repo.UpdateFields(ctx, created.ID, map[string]interface{}{
			"status":       string(model.StatusAwaitingPayment),
			"external_ref": int64(555),
		})
		require.NoError(t, err)

		got, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusAwaitingPayment, got.Status)
		require.NotNil(t, got.ExternalRef)
		assert.Equal(t, int64(555), *got.ExternalRef)
	})

	t.Run("missing row", func(t *testing.T) {
		err := repo.UpdateFields(ctx, uuid.New(), map[string]interface{}{
			"status": string(model.StatusFailed),
		})
		assert.ErrorIs(t, err, ErrTransactionNotFound)
	})
}

func TestTransactionRepository_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTransactionRepository(db.DB)
	ctx := context.Background()
	user := seedUser(t, db)

	created, err := repo.Create(ctx, &model.Transaction{
		ID:       uuid.New(),
		UserID:   user.ID,
		Amount:   1000,
		Currency: "VND",
		Status:   model.StatusPending,
	})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, created.ID))

	_, err = repo.GetByID(ctx, created.ID)
	assert.ErrorIs(t, err, ErrTransactionNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, created.ID), ErrTransactionNotFound)
}

func TestTransactionRepository_List(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTransactionRepository(db.DB)
	ctx := context.Background()
	user := seedUser(t, db)
	other := seedUser(t, db)

	statuses := []model.TransactionStatus{
		model.StatusPending,
		model.StatusAwaitingPayment,
		model.StatusCompleted,
		model.StatusFailed,
	}
	for i, status := range statuses {
		_, err := repo.Create(ctx, &model.Transaction{
			ID:       uuid.New(),
			UserID:   user.ID,
			Amount:   int64((i + 1) * 1000),
			Currency: "VND",
			Status:   status,
		})
		require.NoError(t, err)
	}
	_, err := repo.Create(ctx, &model.Transaction{
		ID:       uuid.New(),
		UserID:   other.ID,
		Amount:   9000,
		Currency: "VND",
		Status:   model.StatusCompleted,
	})
	require.NoError(t, err)

	t.Run("filter by user", func(t *testing.T) {
		txns, total, err := repo.List(ctx, model.TransactionFilter{UserID: &user.ID, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(4), total)
		assert.Len(t, txns, 4)
	})

	t.Run("filter by statuses", func(t *testing.T) {
		txns, total, err := repo.List(ctx, model.TransactionFilter{
			UserID:   &user.ID,
			Statuses: []model.TransactionStatus{model.StatusCompleted, model.StatusFailed},
			Limit:    10,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, txns, 2)
	})

	t.Run("pagination", func(t *testing.T) {
		txns, total, err := repo.List(ctx, model.TransactionFilter{UserID: &user.ID, Limit: 2, Offset: 3})
		require.NoError(t, err)
		assert.Equal(t, int64(4), total)
		assert.Len(t, txns, 1)
	})

	t.Run("time range excludes everything in the future", func(t *testing.T) {
		from := time.Now().Add(time.Hour)
		_, total, err := repo.List(ctx, model.TransactionFilter{UserID: &user.ID, From: &from, Limit: 10})
		require.NoError(t, err)
		assert.Zero(t, total)
	})
}

func TestTransactionRepository_Stats(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTransactionRepository(db.DB)
	ctx := context.Background()
	user := seedUser(t, db)

	seed := []struct {
		status model.TransactionStatus
		amount int64
	}{
		{model.StatusCompleted, 30000},
		{model.StatusCompleted, 20000},
		{model.StatusAwaitingPayment, 5000},
		{model.StatusFailed, 7000},
		{model.StatusCancelled, 8000},
	}
	for _, s := range seed {
		_, err := repo.Create(ctx, &model.Transaction{
			ID:       uuid.New(),
			UserID:   user.ID,
			Amount:   s.amount,
			Currency: "VND",
			Status:   s.status,
		})
		require.NoError(t, err)
	}

	t.Run("per user", func(t *testing.T) {
		stats, err := repo.Stats(ctx, &user.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(5), stats.Total)
		assert.Equal(t, int64(2), stats.Completed)
		assert.Equal(t, int64(1), stats.Pending)
		assert.Equal(t, int64(2), stats.Failed)
		assert.Equal(t, int64(50000), stats.TotalAmount)
	})

	t.Run("unknown user is all zeros", func(t *testing.T) {
		unknown := uuid.New()
		stats, err := repo.Stats(ctx, &unknown)
		require.NoError(t, err)
		assert.Zero(t, stats.Total)
		assert.Zero(t, stats.TotalAmount)
	})
}
