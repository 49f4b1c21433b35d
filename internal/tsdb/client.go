package tsdb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"go-iot-backend/internal/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second
	batchSize      = 100
	flushInterval  = 1000 // milliseconds
)

// Client owns the InfluxDB connection and its non-blocking write API.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
}

func Connect(cfg config.InfluxConfig) (*Client, error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(batchSize).
			SetFlushInterval(flushInterval),
	)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	c := &Client{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
	}
	go c.logWriteErrors(c.writeAPI.Errors())

	slog.Info("influxdb connected", "url", cfg.URL, "bucket", cfg.Bucket)
	return c, nil
}

func (c *Client) logWriteErrors(errs <-chan error) {
	for err := range errs {
		slog.Error("influxdb write failed", "error", err)
	}
}

// Writer exposes the batched write API to the sink.
func (c *Client) Writer() api.WriteAPI {
	return c.writeAPI
}

func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	healthy, err := c.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("influxdb ping: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb ping: server not healthy")
	}
	return nil
}

// Close flushes buffered points before closing the connection.
func (c *Client) Close() {
	c.writeAPI.Flush()
	c.client.Close()
}
