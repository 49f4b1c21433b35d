package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go-iot-backend/internal/event"
	"go-iot-backend/internal/model"
	"go-iot-backend/pkg/apierror"
)

type ControlStore interface {
	Get(ctx context.Context) (model.ControlState, error)
	EnsureDefault(ctx context.Context) error
	Set(ctx context.Context, tv int) (model.ControlState, int64, error)
	Toggle(ctx context.Context) (model.ControlState, int64, error)
}

// ControlCache is an optional read-through cache in front of the control
// row. Errors from it are logged and otherwise ignored. Writes use Set;
// misses use Fill, which must not replace an existing entry.
type ControlCache interface {
	Get(ctx context.Context) (model.ControlState, bool, error)
	Fill(ctx context.Context, state model.ControlState) (bool, error)
	Set(ctx context.Context, state model.ControlState) error
	Invalidate(ctx context.Context) error
}

type ControlService struct {
	store  ControlStore
	cache  ControlCache
	events event.Publisher
}

func NewControlService(store ControlStore, cache ControlCache, events event.Publisher) *ControlService {
	if events == nil {
		events = event.NopPublisher{}
	}
	return &ControlService{store: store, cache: cache, events: events}
}

// Status is polled by devices without credentials.
func (s *ControlService) Status(ctx context.Context) (model.ControlStatus, error) {
	if s.cache != nil {
		state, ok, err := s.cache.Get(ctx)
		if err != nil {
			slog.Warn("control cache read failed", "error", err)
		}
		if ok {
			return model.ControlStatus{TV: state.TV}, nil
		}
	}

	state, err := s.current(ctx)
	if err != nil {
		return model.ControlStatus{}, err
	}

	if s.cache != nil {
		if _, err := s.cache.Fill(ctx, state); err != nil {
			slog.Warn("control cache fill failed", "error", err)
		}
	}

	return model.ControlStatus{TV: state.TV}, nil
}

func (s *ControlService) Update(ctx context.Context, raw json.RawMessage) (model.ControlUpdateResult, error) {
	tv, err := parseTV(raw)
	if err != nil {
		return model.ControlUpdateResult{}, err
	}

	state, affected, err := s.store.Set(ctx, tv)
	if err != nil {
		return model.ControlUpdateResult{}, fmt.Errorf("set control: %w", err)
	}
	s.changed(ctx, state)

	return model.ControlUpdateResult{
		Message:      "TV control updated successfully",
		TV:           state.TV,
		UpdatedAt:    state.UpdatedAt,
		AffectedRows: affected,
	}, nil
}

func (s *ControlService) Toggle(ctx context.Context) (model.ControlToggleResult, error) {
	if err := s.store.EnsureDefault(ctx); err != nil {
		return model.ControlToggleResult{}, fmt.Errorf("ensure control row: %w", err)
	}

	state, affected, err := s.store.Toggle(ctx)
	if err != nil {
		return model.ControlToggleResult{}, fmt.Errorf("toggle control: %w", err)
	}
	s.changed(ctx, state)

	message := "TV turned OFF"
	if state.TV == 1 {
		message = "TV turned ON"
	}

	return model.ControlToggleResult{
		ControlUpdateResult: model.ControlUpdateResult{
			Message:      message,
			TV:           state.TV,
			UpdatedAt:    state.UpdatedAt,
			AffectedRows: affected,
		},
		PreviousValue: 1 - state.TV,
		NewValue:      state.TV,
	}, nil
}

func (s *ControlService) Summary(ctx context.Context) (model.DeviceSummary, error) {
	state, err := s.current(ctx)
	if err != nil {
		return model.DeviceSummary{}, err
	}

	tv := model.DeviceStatus{Status: "OFF", Value: state.TV}
	if state.TV == 1 {
		tv.Status = "ON"
	}
	if !state.UpdatedAt.IsZero() {
		updated := state.UpdatedAt
		tv.LastUpdated = &updated
	}

	active := state.TV
	return model.DeviceSummary{
		Devices:       map[string]model.DeviceStatus{"TV": tv},
		TotalDevices:  1,
		ActiveDevices: active,
		Summary:       fmt.Sprintf("%d of 1 devices are currently ON", active),
	}, nil
}

// State reads the control row directly, bypassing the cache.
func (s *ControlService) State(ctx context.Context) (model.ControlState, error) {
	return s.current(ctx)
}

// current reads the control row, creating the TV=0 default when it is
// missing.
func (s *ControlService) current(ctx context.Context) (model.ControlState, error) {
	state, err := s.store.Get(ctx)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return model.ControlState{}, fmt.Errorf("get control: %w", err)
	}

	if err := s.store.EnsureDefault(ctx); err != nil {
		return model.ControlState{}, fmt.Errorf("ensure control row: %w", err)
	}
	slog.Info("control row initialized", "tv", 0)

	state, err = s.store.Get(ctx)
	if err != nil {
		return model.ControlState{}, fmt.Errorf("get control: %w", err)
	}
	return state, nil
}

func (s *ControlService) changed(ctx context.Context, state model.ControlState) {
	if s.cache != nil {
		if err := s.cache.Set(ctx, state); err != nil {
			slog.Warn("control cache write failed", "error", err)
			if err := s.cache.Invalidate(ctx); err != nil {
				slog.Warn("control cache invalidate failed", "error", err)
			}
		}
	}

	updatedAt := state.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	s.events.Publish(event.New(event.TypeControlChanged, event.ControlChanged{
		TV:        state.TV,
		UpdatedAt: updatedAt,
	}))
}

// parseTV accepts 0, 1, "0", "1", true and false.
func parseTV(raw json.RawMessage) (int, error) {
	if isAbsent(raw) {
		return 0, apierror.Validation("TV control value is required", "")
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, apierror.Validation("TV value must be 0, 1, true, or false", "")
	}

	switch val := v.(type) {
	case bool:
		if val {
			return 1, nil
		}
		return 0, nil
	case float64:
		if val == 0 || val == 1 {
			return int(val), nil
		}
	case string:
		if val == "0" || val == "1" {
			return int(val[0] - '0'), nil
		}
	}

	return 0, apierror.Validation("TV value must be 0, 1, true, or false", "")
}
