package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-iot-backend/internal/model"
)

type ReadingRepository struct {
	pool *pgxpool.Pool
}

func NewReadingRepository(pool *pgxpool.Pool) *ReadingRepository {
	return &ReadingRepository{pool: pool}
}

// The table name comes from model.SensorID.Table, which only ever yields
// distance1 or distance2; every value goes through bind parameters.

func (r *ReadingRepository) Insert(ctx context.Context, sensor model.SensorID, in model.NewReading) (model.Reading, error) {
	reading := model.Reading{Distances: in.Distances, Status: in.Status}
	err := r.pool.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO %s (distances, status, timestamp) VALUES ($1, $2, now())
		             RETURNING id, timestamp`, sensor.Table()),
		in.Distances, in.Status).
		Scan(&reading.ID, &reading.Timestamp)
	if err != nil {
		return model.Reading{}, fmt.Errorf("insert %s reading: %w", sensor.Table(), err)
	}
	return reading, nil
}

func (r *ReadingRepository) List(ctx context.Context, sensor model.SensorID, limit int) ([]model.Reading, error) {
	rows, err := r.pool.Query(ctx,
		fmt.Sprintf(`SELECT id, distances, status, timestamp FROM %s
		             ORDER BY timestamp DESC, id DESC LIMIT $1`, sensor.Table()),
		limit)
	if err != nil {
		return nil, fmt.Errorf("list %s readings: %w", sensor.Table(), err)
	}
	defer rows.Close()

	readings := make([]model.Reading, 0, limit)
	for rows.Next() {
		var rd model.Reading
		if err := rows.Scan(&rd.ID, &rd.Distances, &rd.Status, &rd.Timestamp); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		readings = append(readings, rd)
	}
	return readings, rows.Err()
}

func (r *ReadingRepository) ListAll(ctx context.Context, limit int) ([]model.Reading, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT 'distance1' AS source, id, distances, status, timestamp FROM distance1
		 UNION ALL
		 SELECT 'distance2' AS source, id, distances, status, timestamp FROM distance2
		 ORDER BY timestamp DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list all readings: %w", err)
	}
	defer rows.Close()

	readings := make([]model.Reading, 0, limit)
	for rows.Next() {
		var rd model.Reading
		if err := rows.Scan(&rd.Source, &rd.ID, &rd.Distances, &rd.Status, &rd.Timestamp); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		readings = append(readings, rd)
	}
	return readings, rows.Err()
}

func (r *ReadingRepository) Latest(ctx context.Context, sensor model.SensorID) (model.Reading, error) {
	var rd model.Reading
	err := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT id, distances, status, timestamp FROM %s
		             ORDER BY timestamp DESC, id DESC LIMIT 1`, sensor.Table())).
		Scan(&rd.ID, &rd.Distances, &rd.Status, &rd.Timestamp)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.Reading{}, model.ErrNotFound
	}
	if err != nil {
		return model.Reading{}, fmt.Errorf("latest %s reading: %w", sensor.Table(), err)
	}
	return rd, nil
}

func (r *ReadingRepository) Aggregate(ctx context.Context, sensor model.SensorID, since time.Time) (model.ReadingAggregate, error) {
	var agg model.ReadingAggregate
	err := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT COUNT(*),
		                    COALESCE(AVG(distances), 0),
		                    COALESCE(MIN(distances), 0),
		                    COALESCE(MAX(distances), 0),
		                    COUNT(*) FILTER (WHERE status IN ('online', '1')),
		                    COUNT(*) FILTER (WHERE status IN ('offline', '0'))
		             FROM %s WHERE timestamp >= $1`, sensor.Table()),
		since).
		Scan(&agg.Total, &agg.Avg, &agg.Min, &agg.Max, &agg.Online, &agg.Offline)
	if err != nil {
		return model.ReadingAggregate{}, fmt.Errorf("aggregate %s readings: %w", sensor.Table(), err)
	}
	return agg, nil
}

func (r *ReadingRepository) DeleteBefore(ctx context.Context, sensor model.SensorID, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE timestamp < $1`, sensor.Table()), cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old %s readings: %w", sensor.Table(), err)
	}
	return tag.RowsAffected(), nil
}
