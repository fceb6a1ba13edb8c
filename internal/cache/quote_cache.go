package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/phelukas/yahoo-equity-crawler/pkg/logger"
	"github.com/phelukas/yahoo-equity-crawler/pkg/quotes"
	"github.com/redis/go-redis/v9"
)

// QuoteCache keeps enrichment results in redis so repeated runs skip the
// quote endpoint for symbols that were resolved recently.
type QuoteCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ quotes.Cache = (*QuoteCache)(nil)

func NewQuoteCache(redisURL string, ttl time.Duration) (*QuoteCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return NewQuoteCacheWithClient(client, ttl), nil
}

func NewQuoteCacheWithClient(client *redis.Client, ttl time.Duration) *QuoteCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &QuoteCache{client: client, ttl: ttl}
}

func (c *QuoteCache) Get(ctx context.Context, region, symbol string) (quotes.Fields, bool) {
	raw, err := c.client.Get(ctx, makeKey(region, symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return quotes.Fields{}, false
	}
	if err != nil {
		logger.Log.Debug().Err(err).Str("symbol", symbol).Msg("quote cache get error")
		return quotes.Fields{}, false
	}

	var f quotes.Fields
	if err := json.Unmarshal(raw, &f); err != nil {
		logger.Log.Debug().Err(err).Str("symbol", symbol).Msg("quote cache decode error")
		return quotes.Fields{}, false
	}
	return f, true
}

func (c *QuoteCache) Set(ctx context.Context, region, symbol string, f quotes.Fields) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, makeKey(region, symbol), raw, c.ttl).Err()
}

func (c *QuoteCache) Close() error {
	return c.client.Close()
}

func makeKey(region, symbol string) string {
	return "quote:" + region + ":" + symbol
}
