package integration

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/meshwx/weather-proxy/internal/testutil"
	"github.com/meshwx/weather-proxy/pkg/cache"
	"github.com/meshwx/weather-proxy/pkg/proxy"
	"github.com/meshwx/weather-proxy/pkg/upstream"
	"github.com/meshwx/weather-proxy/pkg/weather"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

// newProxy wires a full proxy over the given store and mock upstream.
func newProxy(t *testing.T, store cache.Store, mock *testutil.MockUpstream, ttl time.Duration) *httptest.Server {
	t.Helper()

	mkClient := func(name string) *upstream.Client {
		c, err := upstream.New(upstream.Config{Name: name, BaseURL: mock.URL()})
		if err != nil {
			t.Fatalf("Failed to create upstream client: %v", err)
		}
		return c
	}

	handler := proxy.NewHandler(proxy.Options{
		Store:    store,
		Weather:  mkClient("weather"),
		Nodes:    mkClient("nodes"),
		Meteo:    weather.NewMeteo(mkClient("openmeteo")),
		CacheTTL: ttl,
	})

	srv := httptest.NewServer(handler.Routes())
	t.Cleanup(srv.Close)
	return srv
}

// TestFullRequestFlow exercises the complete flow against a real Redis
// backend: cache miss, upstream fetch, cache store, cache hit.
func TestFullRequestFlow(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetResponse("/", testutil.NewWeatherResponse(`{"city": "berlin", "temperature": 13.8}`))

	srv := newProxy(t, cache.NewRedisStore(redisClient), mock, 5*time.Minute)

	t.Log("Request 1: cache miss, upstream fetch")
	resp1, err := http.Get(srv.URL + "/weather?city=berlin")
	if err != nil {
		t.Fatalf("Request 1 failed: %v", err)
	}
	body1, _ := io.ReadAll(resp1.Body)
	resp1.Body.Close()

	if resp1.StatusCode != http.StatusOK {
		t.Errorf("Request 1 status = %d, want %d", resp1.StatusCode, http.StatusOK)
	}
	if got := resp1.Header.Get("X-Cache-Status"); got != "MISS" {
		t.Errorf("Request 1 X-Cache-Status = %q, want MISS", got)
	}
	if mock.RequestCount() != 1 {
		t.Errorf("Upstream request count = %d, want 1", mock.RequestCount())
	}

	t.Log("Request 2: cache hit from Redis")
	resp2, err := http.Get(srv.URL + "/weather?city=berlin")
	if err != nil {
		t.Fatalf("Request 2 failed: %v", err)
	}
	body2, _ := io.ReadAll(resp2.Body)
	resp2.Body.Close()

	if got := resp2.Header.Get("X-Cache-Status"); got != "HIT" {
		t.Errorf("Request 2 X-Cache-Status = %q, want HIT", got)
	}
	if mock.RequestCount() != 1 {
		t.Errorf("Upstream request count after hit = %d, want 1", mock.RequestCount())
	}
	if string(body1) != string(body2) {
		t.Errorf("Cached body differs: %q vs %q", body1, body2)
	}
}

// TestCacheExpiry verifies that an expired Redis entry triggers a fresh
// upstream fetch.
func TestCacheExpiry(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockUpstream()
	defer mock.Close()
	mock.SetResponse("/", testutil.NewWeatherResponse(`{"temperature": 14.2}`))

	srv := newProxy(t, cache.NewRedisStore(redisClient), mock, time.Second)

	if _, err := http.Get(srv.URL + "/weather?city=berlin"); err != nil {
		t.Fatalf("Initial request failed: %v", err)
	}
	if mock.RequestCount() != 1 {
		t.Fatalf("Upstream request count = %d, want 1", mock.RequestCount())
	}

	time.Sleep(1500 * time.Millisecond)

	resp, err := http.Get(srv.URL + "/weather?city=berlin")
	if err != nil {
		t.Fatalf("Request after expiry failed: %v", err)
	}
	resp.Body.Close()

	if got := resp.Header.Get("X-Cache-Status"); got != "MISS" {
		t.Errorf("X-Cache-Status after expiry = %q, want MISS", got)
	}
	if mock.RequestCount() != 2 {
		t.Errorf("Upstream request count after expiry = %d, want 2", mock.RequestCount())
	}
}

// TestRedisStoreRoundTrip checks entry fidelity through the Redis codec.
func TestRedisStoreRoundTrip(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	store := cache.NewRedisStore(redisClient)
	ctx := context.Background()

	key := cache.Key{Path: "/weather", Params: map[string][]string{"city": {"berlin"}}}
	entry := &cache.Entry{
		Data:        []byte(`{"temperature": 13.8}`),
		ContentType: "application/json",
		StatusCode:  http.StatusOK,
	}

	if err := store.Set(ctx, key, entry, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got.Data) != string(entry.Data) {
		t.Errorf("Data = %q, want %q", got.Data, entry.Data)
	}
	if got.ContentType != entry.ContentType {
		t.Errorf("ContentType = %q, want %q", got.ContentType, entry.ContentType)
	}
	if got.StatusCode != entry.StatusCode {
		t.Errorf("StatusCode = %d, want %d", got.StatusCode, entry.StatusCode)
	}
}
