package common

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/Gabiro3/blimp2/pkg/types"
	"github.com/redis/go-redis/v9"
)

// RedisClient wraps a universal client so single and cluster deployments
// share one code path.
type RedisClient struct {
	redis.UniversalClient
}

type RedisOption func(*redis.UniversalOptions)

func WithClientName(name string) RedisOption {
	return func(opts *redis.UniversalOptions) {
		opts.ClientName = name
	}
}

func NewRedisClient(config types.RedisConfig, options ...RedisOption) (*RedisClient, error) {
	if len(config.Addrs) == 0 {
		return nil, errors.New("redis: no addresses configured")
	}

	opts := &redis.UniversalOptions{
		Addrs:           config.Addrs,
		Username:        config.Username,
		Password:        config.Password,
		ClientName:      config.ClientName,
		PoolSize:        config.PoolSize,
		MinIdleConns:    config.MinIdleConns,
		MaxIdleConns:    config.MaxIdleConns,
		ConnMaxIdleTime: config.ConnMaxIdleTime,
		ConnMaxLifetime: config.ConnMaxLifetime,
		DialTimeout:     config.DialTimeout,
		ReadTimeout:     config.ReadTimeout,
		WriteTimeout:    config.WriteTimeout,
		MaxRedirects:    config.MaxRedirects,
		MaxRetries:      config.MaxRetries,
		RouteByLatency:  config.RouteByLatency,
	}
	if config.EnableTLS {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: config.InsecureSkipVerify}
	}
	for _, opt := range options {
		opt(opts)
	}

	var client redis.UniversalClient
	switch config.Mode {
	case types.RedisModeCluster:
		client = redis.NewClusterClient(opts.Cluster())
	default:
		client = redis.NewClient(opts.Simple())
	}

	rc := &RedisClient{UniversalClient: client}
	if err := rc.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rc, nil
}
