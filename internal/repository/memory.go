package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go-iot-backend/internal/model"
)

// In-memory stores with the same contracts as the Postgres repositories.
// Used by service and router tests.

type MemoryUserRepository struct {
	mu    sync.RWMutex
	users []model.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{}
}

func (r *MemoryUserRepository) FindByUsername(_ context.Context, username string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (r *MemoryUserRepository) Create(_ context.Context, u model.User) error {
	if u.ID == "" || u.Username == "" || u.PasswordHash == "" || u.Role == "" {
		return fmt.Errorf("create user: %w", model.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Username == u.Username {
			return model.ErrDuplicateUsername
		}
	}
	r.users = append(r.users, u)
	return nil
}

func (r *MemoryUserRepository) RecordLogin(_ context.Context, userID string, ip string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.users {
		if r.users[i].ID == userID {
			loginAt := at
			loginIP := ip
			r.users[i].LastLogin = &loginAt
			r.users[i].LastIP = &loginIP
			return nil
		}
	}
	return model.ErrUserNotFound
}

func (r *MemoryUserRepository) ListAuditLog(_ context.Context) ([]model.AuditLogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]model.AuditLogEntry, 0, len(r.users))
	for _, u := range r.users {
		entries = append(entries, model.AuditLogEntry{
			ID:        u.ID,
			Username:  u.Username,
			Role:      u.Role,
			LastLogin: u.LastLogin,
			LastIP:    u.LastIP,
		})
	}
	return entries, nil
}

func (r *MemoryUserRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

type MemoryReadingRepository struct {
	mu     sync.RWMutex
	nextID map[model.SensorID]int64
	rows   map[model.SensorID][]model.Reading
	now    func() time.Time
}

func NewMemoryReadingRepository() *MemoryReadingRepository {
	return &MemoryReadingRepository{
		nextID: map[model.SensorID]int64{},
		rows:   map[model.SensorID][]model.Reading{},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the timestamp source used by Insert.
func (r *MemoryReadingRepository) SetClock(now func() time.Time) {
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}

func (r *MemoryReadingRepository) Insert(_ context.Context, sensor model.SensorID, in model.NewReading) (model.Reading, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID[sensor]++
	reading := model.Reading{
		ID:        r.nextID[sensor],
		Distances: in.Distances,
		Status:    in.Status,
		Timestamp: r.now(),
	}
	r.rows[sensor] = append(r.rows[sensor], reading)
	return reading, nil
}

func (r *MemoryReadingRepository) List(_ context.Context, sensor model.SensorID, limit int) ([]model.Reading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return newestFirst(r.rows[sensor], "", limit), nil
}

func (r *MemoryReadingRepository) ListAll(_ context.Context, limit int) ([]model.Reading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	merged := append(newestFirst(r.rows[model.Sensor1], model.Sensor1.Table(), -1),
		newestFirst(r.rows[model.Sensor2], model.Sensor2.Table(), -1)...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.After(merged[j].Timestamp)
	})
	if limit >= 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

func (r *MemoryReadingRepository) Latest(_ context.Context, sensor model.SensorID) (model.Reading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := newestFirst(r.rows[sensor], "", 1)
	if len(rows) == 0 {
		return model.Reading{}, model.ErrNotFound
	}
	return rows[0], nil
}

func (r *MemoryReadingRepository) Aggregate(_ context.Context, sensor model.SensorID, since time.Time) (model.ReadingAggregate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var agg model.ReadingAggregate
	var sum float64
	for _, rd := range r.rows[sensor] {
		if rd.Timestamp.Before(since) {
			continue
		}
		if agg.Total == 0 || rd.Distances < agg.Min {
			agg.Min = rd.Distances
		}
		if agg.Total == 0 || rd.Distances > agg.Max {
			agg.Max = rd.Distances
		}
		agg.Total++
		sum += rd.Distances
		switch rd.Status {
		case "online", "1":
			agg.Online++
		case "offline", "0":
			agg.Offline++
		}
	}
	if agg.Total > 0 {
		agg.Avg = sum / float64(agg.Total)
	}
	return agg, nil
}

func (r *MemoryReadingRepository) DeleteBefore(_ context.Context, sensor model.SensorID, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.rows[sensor][:0]
	var deleted int64
	for _, rd := range r.rows[sensor] {
		if rd.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, rd)
	}
	r.rows[sensor] = kept
	return deleted, nil
}

func newestFirst(rows []model.Reading, source string, limit int) []model.Reading {
	out := make([]model.Reading, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		rd := rows[i]
		rd.Source = source
		out = append(out, rd)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

type MemoryControlRepository struct {
	mu    sync.Mutex
	state *model.ControlState
}

func NewMemoryControlRepository() *MemoryControlRepository {
	return &MemoryControlRepository{}
}

func (r *MemoryControlRepository) Get(_ context.Context) (model.ControlState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == nil {
		return model.ControlState{}, model.ErrNotFound
	}
	return *r.state, nil
}

func (r *MemoryControlRepository) EnsureDefault(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == nil {
		r.state = &model.ControlState{TV: 0, UpdatedAt: time.Now().UTC()}
	}
	return nil
}

func (r *MemoryControlRepository) Set(_ context.Context, tv int) (model.ControlState, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state = &model.ControlState{TV: tv, UpdatedAt: time.Now().UTC()}
	return *r.state, 1, nil
}

func (r *MemoryControlRepository) Toggle(_ context.Context) (model.ControlState, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == nil {
		return model.ControlState{}, 0, model.ErrNotFound
	}
	r.state = &model.ControlState{TV: 1 - r.state.TV, UpdatedAt: time.Now().UTC()}
	return *r.state, 1, nil
}
