//go:build integration

package repository

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-iot-backend/internal/database"
	"go-iot-backend/internal/model"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	db, err := database.New(ctx, database.Options{URL: url, MaxConns: 10, MinConns: 1})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.EnsureSchema(ctx))
	_, err = db.Pool.Exec(ctx, `TRUNCATE users, distance1, distance2, switch_condition RESTART IDENTITY`)
	require.NoError(t, err)
	return db
}

func TestUserRepository_Postgres(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db.Pool)
	ctx := context.Background()

	u := model.User{
		ID:           uuid.NewString(),
		Username:     "alice",
		PasswordHash: "$2a$10$hash",
		Role:         model.RoleAdminDistance1,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, u))

	dup := u
	dup.ID = uuid.NewString()
	require.ErrorIs(t, repo.Create(ctx, dup), model.ErrDuplicateUsername)

	_, err := repo.FindByUsername(ctx, "Alice")
	require.ErrorIs(t, err, model.ErrUserNotFound)

	found, err := repo.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)
	assert.Nil(t, found.LastLogin)

	require.NoError(t, repo.RecordLogin(ctx, u.ID, "10.0.0.5", time.Now().UTC()))
	require.ErrorIs(t, repo.RecordLogin(ctx, uuid.NewString(), "10.0.0.5", time.Now()), model.ErrUserNotFound)

	entries, err := repo.ListAuditLog(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].LastIP)
	assert.Equal(t, "10.0.0.5", *entries[0].LastIP)
}

func TestReadingRepository_Postgres(t *testing.T) {
	db := newTestDB(t)
	repo := NewReadingRepository(db.Pool)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_, err := repo.Insert(ctx, model.Sensor1, model.NewReading{Distances: float64(i), Status: "online"})
		require.NoError(t, err)
	}
	_, err := repo.Insert(ctx, model.Sensor2, model.NewReading{Distances: 9, Status: "offline"})
	require.NoError(t, err)

	rows, err := repo.List(ctx, model.Sensor1, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 3.0, rows[0].Distances)

	all, err := repo.ListAll(ctx, 10)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "distance2", all[0].Source)

	agg, err := repo.Aggregate(ctx, model.Sensor1, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), agg.Total)
	assert.Equal(t, 2.0, agg.Avg)
	assert.Equal(t, int64(3), agg.Online)

	deleted, err := repo.DeleteBefore(ctx, model.Sensor1, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	_, err = repo.Latest(ctx, model.Sensor1)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestControlRepository_ConcurrentToggle(t *testing.T) {
	db := newTestDB(t)
	repo := NewControlRepository(db.Pool)
	ctx := context.Background()

	_, err := repo.Get(ctx)
	require.ErrorIs(t, err, model.ErrNotFound)
	_, affected, err := repo.Toggle(ctx)
	require.ErrorIs(t, err, model.ErrNotFound)
	assert.Zero(t, affected)

	require.NoError(t, repo.EnsureDefault(ctx))
	require.NoError(t, repo.EnsureDefault(ctx))

	const toggles = 11
	var wg sync.WaitGroup
	for i := 0; i < toggles; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = repo.Toggle(ctx)
		}()
	}
	wg.Wait()

	state, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, state.TV)

	state, affected, err = repo.Set(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, state.TV)
	assert.Equal(t, int64(1), affected)
}
