package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/todoproduction/todo-client/config"
)

const redisPingTimeout = 5 * time.Second

// ConnectRedis opens a direct, sentinel or cluster client for the credential
// store and pings it.
//
//nolint:ireturn // the concrete client type depends on the topology in cfg.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (redis.UniversalClient, error) {
	client, desc, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if pingErr := client.Ping(pingCtx).Err(); pingErr != nil {
		if closeErr := client.Close(); closeErr != nil {
			pingErr = errors.Join(pingErr, fmt.Errorf("close redis client: %w", closeErr))
		}
		return nil, fmt.Errorf("ping redis: %w", pingErr)
	}

	if logger != nil {
		logger.InfoContext(ctx, "redis connected", "addr", desc, "db", cfg.DB)
	}
	return client, nil
}

// newRedisClient returns the client and a credential-free description of where it points.
//
//nolint:ireturn // see ConnectRedis.
func newRedisClient(cfg config.RedisConfig) (redis.UniversalClient, string, error) {
	switch {
	case cfg.UseCluster:
		addrs := nonEmpty(cfg.ClusterNodes)
		opts := &redis.ClusterOptions{Addrs: addrs, Password: cfg.Password}
		if len(addrs) == 0 {
			parsed, err := parseRedisURI(cfg)
			if err != nil {
				return nil, "", err
			}
			opts.Addrs = []string{parsed.Addr}
			opts.Username = parsed.Username
			opts.Password = parsed.Password
			opts.TLSConfig = parsed.TLSConfig
		}
		if len(opts.Addrs) == 0 || opts.Addrs[0] == "" {
			return nil, "", errors.New("redis cluster configuration requires at least one address")
		}
		return redis.NewClusterClient(opts), "cluster:" + strings.Join(opts.Addrs, ","), nil

	case cfg.UseSentinel:
		nodes := nonEmpty(cfg.SentinelNodes)
		if len(nodes) == 0 {
			return nil, "", errors.New("redis sentinel configuration requires at least one sentinel node")
		}
		return redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:       cfg.SentinelMasterName,
			SentinelAddrs:    nodes,
			Password:         cfg.Password,
			SentinelPassword: cfg.SentinelPassword,
			DB:               cfg.DB,
		}), "sentinel:" + cfg.SentinelMasterName, nil

	default:
		opts, err := parseRedisURI(cfg)
		if err != nil {
			return nil, "", err
		}
		if opts.Addr == "" {
			return nil, "", errors.New("redis direct configuration requires a URI")
		}
		return redis.NewClient(opts), opts.Addr, nil
	}
}

// parseRedisURI accepts either redis:// / rediss:// URLs or a bare host:port.
// Password and DB from cfg apply when the URL does not carry its own.
func parseRedisURI(cfg config.RedisConfig) (*redis.Options, error) {
	uri := strings.TrimSpace(cfg.URI)
	if !strings.HasPrefix(uri, "redis://") && !strings.HasPrefix(uri, "rediss://") {
		return &redis.Options{Addr: uri, Password: cfg.Password, DB: cfg.DB}, nil
	}

	opts, err := redis.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.Password == "" {
		opts.Password = cfg.Password
	}
	if opts.DB == 0 {
		opts.DB = cfg.DB
	}
	return opts, nil
}

func nonEmpty(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
