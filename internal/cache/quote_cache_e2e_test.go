//go:build e2e
// +build e2e

package cache_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/phelukas/yahoo-equity-crawler/internal/cache"
	"github.com/phelukas/yahoo-equity-crawler/pkg/quotes"
)

func setupRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start redis container")

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return fmt.Sprintf("redis://%s:%s/0", host, port.Port()), cleanup
}

func TestQuoteCache_RoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	url, cleanup := setupRedis(t, ctx)
	defer cleanup()

	c, err := cache.NewQuoteCache(url, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.Get(ctx, "BR", "PETR4.SA")
	assert.False(t, ok)

	want := quotes.Fields{
		Currency:  "BRL",
		MarketCap: decimal.NewNullDecimal(decimal.RequireFromString("512345678901")),
	}
	require.NoError(t, c.Set(ctx, "BR", "PETR4.SA", want))

	got, ok := c.Get(ctx, "BR", "PETR4.SA")
	require.True(t, ok)
	assert.Equal(t, "BRL", got.Currency)
	assert.True(t, got.MarketCap.Valid)
	assert.True(t, want.MarketCap.Decimal.Equal(got.MarketCap.Decimal))

	_, ok = c.Get(ctx, "US", "PETR4.SA")
	assert.False(t, ok, "keys are scoped by region")
}
