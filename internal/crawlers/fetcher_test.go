package crawlers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/RecoveryAshes/CatalogHarvest/internal/models"
	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoProductsPage = `{"tabs":[{"product_info":{"products":[{"id":1,"desc":"A"},{"id":2,"desc":"B"}]}}]}`

func testConfig(baseURL string) models.HarvestConfig {
	return models.HarvestConfig{
		BaseURL:        baseURL,
		ListingType:    "pc",
		Concurrency:    5,
		RequestTimeout: 5 * time.Second,
		UserAgent:      "catalogharvest-test",
	}
}

// recordingSleep 记录每次等待,不真正休眠
type recordingSleep struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (s *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, d)
	return ctx.Err()
}

func (s *recordingSleep) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newTestFetcher(t *testing.T, handler http.HandlerFunc) (*PageFetcher, *recordingSleep) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	f := NewPageFetcher(testConfig(server.URL), nil)
	rec := &recordingSleep{}
	f.sleep = rec.sleep
	return f, rec
}

func TestPageFetcher_Items(t *testing.T) {
	received := make(chan *http.Request, 1)
	f, pace := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		received <- r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(twoProductsPage))
	})

	auth := models.AuthContext{
		Headers: http.Header{
			"X-Channel":       []string{"BB-WEB"},
			"Accept-Encoding": []string{"gzip, deflate, br, zstd"},
		},
		Cookies: map[string]string{"_bb_vid": "v1", "csrftoken": "t"},
	}

	out := f.Fetch(context.Background(), "fruits-vegetables", 3, auth)

	require.Equal(t, models.OutcomeItems, out.Kind, "outcome err: %v", out.Err())
	require.Len(t, out.Items, 2)
	assert.Equal(t, "A", out.Items[0].String("desc"))
	assert.Equal(t, "1", out.Items[0].String("id"))

	r := <-received
	assert.Equal(t, "/listing-svc/v2/products", r.URL.Path)
	assert.Equal(t, "type=pc&slug=fruits-vegetables&page=3", r.URL.RawQuery)
	assert.Equal(t, "_bb_vid=v1; csrftoken=t", r.Header.Get("Cookie"))
	assert.Equal(t, "BB-WEB", r.Header.Get("X-Channel"))
	assert.Equal(t, supportedEncodings, r.Header.Get("Accept-Encoding"))
	assert.Equal(t, "catalogharvest-test", r.Header.Get("User-Agent"))
	assert.Equal(t, 1, pace.count(), "每次请求后都应等待")

	// 认证信息不应被修改
	assert.Equal(t, "gzip, deflate, br, zstd", auth.Headers.Get("Accept-Encoding"))
}

func TestPageFetcher_Empty(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"空商品列表", `{"tabs":[{"product_info":{"products":[]}}]}`},
		{"缺少product_info", `{"tabs":[{}]}`},
		{"缺少tabs", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, pace := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})

			out := f.Fetch(context.Background(), "k", 1, models.AuthContext{})
			assert.Equal(t, models.OutcomeEmpty, out.Kind)
			assert.Equal(t, 1, pace.count())
		})
	}
}

func TestPageFetcher_HTTPError(t *testing.T) {
	f, pace := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"blocked"}`))
	})

	out := f.Fetch(context.Background(), "k", 1, models.AuthContext{})
	assert.Equal(t, models.OutcomeHTTPError, out.Kind)
	assert.Equal(t, http.StatusForbidden, out.Status)
	assert.Equal(t, 1, pace.count(), "失败的请求后也应等待")
}

func TestPageFetcher_TransportError(t *testing.T) {
	t.Run("JSON解析失败", func(t *testing.T) {
		f, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>captcha</html>`))
		})

		out := f.Fetch(context.Background(), "k", 1, models.AuthContext{})
		assert.Equal(t, models.OutcomeTransportError, out.Kind)
		assert.Error(t, out.Cause)
	})

	t.Run("连接失败", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		baseURL := server.URL
		server.Close()

		f := NewPageFetcher(testConfig(baseURL), nil)
		pace := &recordingSleep{}
		f.sleep = pace.sleep

		out := f.Fetch(context.Background(), "k", 1, models.AuthContext{})
		assert.Equal(t, models.OutcomeTransportError, out.Kind)
		assert.Equal(t, 1, pace.count())
	})

	t.Run("上下文已取消", func(t *testing.T) {
		f, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(twoProductsPage))
		})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		out := f.Fetch(ctx, "k", 1, models.AuthContext{})
		assert.Equal(t, models.OutcomeTransportError, out.Kind)
	})

	t.Run("无法解码的压缩格式", func(t *testing.T) {
		f, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Encoding", "zstd")
			w.Write([]byte{0x28, 0xb5, 0x2f, 0xfd})
		})

		out := f.Fetch(context.Background(), "k", 1, models.AuthContext{})
		assert.Equal(t, models.OutcomeTransportError, out.Kind)
	})
}

func TestPageFetcher_CompressedBodies(t *testing.T) {
	var brBody bytes.Buffer
	bw := brotli.NewWriter(&brBody)
	_, _ = bw.Write([]byte(twoProductsPage))
	require.NoError(t, bw.Close())

	var gzBody bytes.Buffer
	gw := gzip.NewWriter(&gzBody)
	_, _ = gw.Write([]byte(twoProductsPage))
	require.NoError(t, gw.Close())

	var zBody bytes.Buffer
	zw := zlib.NewWriter(&zBody)
	_, _ = zw.Write([]byte(twoProductsPage))
	require.NoError(t, zw.Close())

	tests := []struct {
		name     string
		encoding string
		body     []byte
	}{
		{"brotli", "br", brBody.Bytes()},
		{"gzip", "gzip", gzBody.Bytes()},
		{"deflate", "deflate", zBody.Bytes()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Encoding", tt.encoding)
				w.Write(tt.body)
			})

			auth := models.AuthContext{Headers: http.Header{"Accept-Encoding": []string{"gzip, deflate, br"}}}
			out := f.Fetch(context.Background(), "k", 1, auth)
			require.Equal(t, models.OutcomeItems, out.Kind, "outcome err: %v", out.Err())
			assert.Len(t, out.Items, 2)
		})
	}
}

func TestDecompressResponse(t *testing.T) {
	plain := []byte(`{"a":1}`)

	out, err := decompressResponse("", plain)
	require.NoError(t, err)
	assert.Equal(t, plain, out)

	// 已被HTTP客户端解压的gzip
	out, err = decompressResponse("gzip", plain)
	require.NoError(t, err)
	assert.Equal(t, plain, out)

	// 裸DEFLATE流 (无zlib头)
	var raw bytes.Buffer
	fw, err := flate.NewWriter(&raw, flate.DefaultCompression)
	require.NoError(t, err)
	_, _ = fw.Write(plain)
	require.NoError(t, fw.Close())
	out, err = decompressResponse("deflate", raw.Bytes())
	require.NoError(t, err)
	assert.Equal(t, plain, out)

	var wrapped bytes.Buffer
	zw := zlib.NewWriter(&wrapped)
	_, _ = zw.Write(plain)
	require.NoError(t, zw.Close())
	out, err = decompressResponse("Deflate", wrapped.Bytes())
	require.NoError(t, err)
	assert.Equal(t, plain, out)

	_, err = decompressResponse("compress", plain)
	assert.Error(t, err)
}

func TestPageFetcher_PaceDelay(t *testing.T) {
	f := NewPageFetcher(models.HarvestConfig{
		BaseURL:        "https://www.bigbasket.com",
		ListingType:    "pc",
		PaceMin:        3 * time.Second,
		PaceMax:        6 * time.Second,
		RequestTimeout: time.Second,
	}, nil)

	for i := 0; i < 200; i++ {
		d := f.paceDelay()
		if d < 3*time.Second || d > 6*time.Second {
			t.Fatalf("等待时间超出范围: %s", d)
		}
	}

	f.config.PaceMax = f.config.PaceMin
	assert.Equal(t, 3*time.Second, f.paceDelay())
}

func TestPageFetcher_ListingURL(t *testing.T) {
	f := NewPageFetcher(testConfig("https://www.bigbasket.com/"), nil)
	assert.Equal(t,
		"https://www.bigbasket.com/listing-svc/v2/products?type=pc&slug=fruits-vegetables%2Ffresh-fruits&page=2",
		f.ListingURL("fruits-vegetables/fresh-fruits", 2))
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := sleepContext(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)

	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))
}
