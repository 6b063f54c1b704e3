// Package testutil provides testing utilities shared by the client, store and CLI tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// TestingTB is the subset of testing.TB the helpers need.
type TestingTB interface {
	Helper()
	Skip(args ...any)
	Skipf(format string, args ...any)
	Fatal(args ...any)
	Fatalf(format string, args ...any)
	Logf(format string, args ...any)
}

const redisProbeTimeout = 2 * time.Second

func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "y":
		return true
	default:
		return false
	}
}

// Fail instead of skipping when CI promises infrastructure.
func requireRedis() bool { return envBool("TEST_REQUIRE_REDIS") || envBool("TEST_REQUIRE_INFRA") }

// RunConcurrent starts every function on its own goroutine, releases them at
// once and waits for all of them. Errors are returned in argument order.
func RunConcurrent(funcs ...func() error) []error {
	start := make(chan struct{})
	results := make([]error, len(funcs))
	done := make(chan struct{}, len(funcs))

	for i, fn := range funcs {
		go func() {
			<-start
			results[i] = fn()
			done <- struct{}{}
		}()
	}

	close(start)
	for range funcs {
		<-done
	}
	return results
}

// AssertNoErrors fails the test on the first non-nil error.
func AssertNoErrors(t TestingTB, errs []error) {
	t.Helper()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("concurrent call %d failed: %v", i, err)
		}
	}
}

// Int64Ptr returns a pointer to i.
func Int64Ptr(i int64) *int64 { return &i }

// GetTestRedisAddr finds a reachable Redis for tests. REDIS_ADDR wins, then
// the usual CI and local addresses are probed.
func GetTestRedisAddr(t TestingTB) (string, bool) {
	t.Helper()

	candidates := []string{"redis:6379", "localhost:6379", "localhost:56379"}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		candidates = []string{addr}
	}
	for _, addr := range candidates {
		if pingRedis(t, addr, 0) == nil {
			return addr, true
		}
	}
	return candidates[len(candidates)-1], false
}

func pingRedis(t TestingTB, addr string, db int) error {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	defer func() {
		if err := client.Close(); err != nil {
			t.Logf("close redis probe: %v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), redisProbeTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Logf("redis not available at %s: %v", addr, err)
		return err
	}
	return nil
}

// reserveRedisDB picks a database index so packages running in parallel do
// not flush each other's data. TEST_REDIS_DB overrides the choice. Otherwise
// a lock key in DB 0 claims one of 1..15, released on cleanup.
func reserveRedisDB(t TestingTB, addr string) int {
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i >= 0 {
			return i
		}
		t.Logf("ignoring invalid TEST_REDIS_DB=%q", v)
	}

	meta := redis.NewClient(&redis.Options{Addr: addr})
	defer func() { _ = meta.Close() }()

	owner := fmt.Sprintf("%d:%d", os.Getpid(), time.Now().UnixNano())
	for db := 1; db <= 15; db++ {
		lockKey := fmt.Sprintf("todo:testutil:db_lock:%d", db)
		ctx, cancel := context.WithTimeout(context.Background(), redisProbeTimeout)
		ok, err := meta.SetNX(ctx, lockKey, owner, 30*time.Minute).Result()
		cancel()
		if err != nil || !ok {
			continue
		}
		if tc, ok := any(t).(interface{ Cleanup(func()) }); ok {
			tc.Cleanup(func() { releaseRedisLock(t, addr, lockKey) })
		}
		return db
	}
	return 1
}

func releaseRedisLock(t TestingTB, addr, lockKey string) {
	c := redis.NewClient(&redis.Options{Addr: addr})
	defer func() { _ = c.Close() }()
	ctx, cancel := context.WithTimeout(context.Background(), redisProbeTimeout)
	defer cancel()
	if err := c.Del(ctx, lockKey).Err(); err != nil {
		t.Logf("release redis db lock %s: %v", lockKey, err)
	}
}

// SetupTestRedis returns a client on an empty, reserved database. The test is
// skipped when Redis is unreachable unless TEST_REQUIRE_REDIS is set.
func SetupTestRedis(t TestingTB) *redis.Client {
	t.Helper()

	addr, ok := GetTestRedisAddr(t)
	if !ok {
		if requireRedis() {
			t.Fatal("redis not available for testing")
		}
		t.Skip("redis not available for testing")
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: reserveRedisDB(t, addr)})
	ctx, cancel := context.WithTimeout(context.Background(), redisProbeTimeout)
	defer cancel()
	if err := client.FlushDB(ctx).Err(); err != nil {
		_ = client.Close()
		if requireRedis() {
			t.Fatalf("flush test redis at %s: %v", addr, err)
		}
		t.Skipf("redis not usable at %s: %v", addr, err)
	}
	return client
}
