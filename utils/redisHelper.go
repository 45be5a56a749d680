package utils

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/messdesk/mess_backend/config"
)

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}

// StoreRedis caches obj as JSON under key.
func StoreRedis[T any](ctx context.Context, key string, obj T) error {
	return config.SetRedisObject(ctx, key, obj, GetCacheLifespan())
}

// RetrieveRedis returns nil without error on a cache miss.
func RetrieveRedis[T any](ctx context.Context, key string) (*T, error) {
	var result T
	exists, err := config.GetRedisObject(ctx, key, &result)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return &result, nil
}
