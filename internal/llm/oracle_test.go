package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Veraticus/treasury-vouchers/internal/common"
	"github.com/Veraticus/treasury-vouchers/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var paymentVocabulary = []string{"Operating", "Capital", "Vendor", "Personnel", "Administrative"}

func chatServer(t *testing.T, calls *atomic.Int32, handler func(w http.ResponseWriter, body map[string]any)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		handler(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func completion(content string) map[string]any {
	return map[string]any{
		"choices": []any{
			map[string]any{"message": map[string]any{"role": "assistant", "content": content}},
		},
	}
}

func testConfig(url string) Config {
	return Config{
		BaseURL:    url + "/v1",
		Model:      "test-model",
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		RateLimit:  600,
	}
}

func TestOracle_Classify(t *testing.T) {
	var calls atomic.Int32
	server := chatServer(t, &calls, func(w http.ResponseWriter, body map[string]any) {
		assert.Equal(t, "test-model", body["model"])
		assert.InDelta(t, 0, body["temperature"], 0.0001)
		assert.InDelta(t, 10, body["max_tokens"], 0.0001)

		messages := body["messages"].([]any)
		require.Len(t, messages, 2)
		system := messages[0].(map[string]any)
		assert.Equal(t, "system", system["role"])
		assert.Contains(t, system["content"], "Operating, Capital, Vendor, Personnel, Administrative")
		user := messages[1].(map[string]any)
		assert.Contains(t, user["content"], "Laptop purchase")
		assert.Contains(t, user["content"], "2500.00")

		_ = json.NewEncoder(w).Encode(completion(" capital\n"))
	})

	client, err := newOpenAIClient(testConfig(server.URL))
	require.NoError(t, err)
	oracle := NewOracleWithClient(client, testConfig(server.URL), nil)

	q := service.OracleQuery{Description: "Laptop purchase", Amount: decimal.NewFromInt(2500), Vocabulary: paymentVocabulary}
	label, err := oracle.Classify(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, "Capital", label)

	label, err = oracle.Classify(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, "Capital", label)
	assert.Equal(t, int32(1), calls.Load(), "second call served from cache")
}

func TestOracle_OutsideVocabulary(t *testing.T) {
	var calls atomic.Int32
	server := chatServer(t, &calls, func(w http.ResponseWriter, _ map[string]any) {
		_ = json.NewEncoder(w).Encode(completion("Miscellaneous"))
	})

	oracle, err := NewOracle(context.Background(), testConfig(server.URL), nil)
	require.NoError(t, err)

	_, err = oracle.Classify(context.Background(), service.OracleQuery{
		Description: "something", Amount: decimal.NewFromInt(1), Vocabulary: paymentVocabulary,
	})
	assert.ErrorIs(t, err, ErrLabelOutsideVocabulary)
}

func TestOracle_ServerErrors(t *testing.T) {
	t.Run("5xx is retried", func(t *testing.T) {
		var calls atomic.Int32
		server := chatServer(t, &calls, func(w http.ResponseWriter, _ map[string]any) {
			if calls.Load() == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_ = json.NewEncoder(w).Encode(completion("Vendor"))
		})

		oracle, err := NewOracle(context.Background(), testConfig(server.URL), nil)
		require.NoError(t, err)

		label, err := oracle.Classify(context.Background(), service.OracleQuery{
			Description: "consultant", Amount: decimal.NewFromInt(10), Vocabulary: paymentVocabulary,
		})
		require.NoError(t, err)
		assert.Equal(t, "Vendor", label)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("4xx is not retried", func(t *testing.T) {
		var calls atomic.Int32
		server := chatServer(t, &calls, func(w http.ResponseWriter, _ map[string]any) {
			w.WriteHeader(http.StatusUnauthorized)
		})

		oracle, err := NewOracle(context.Background(), testConfig(server.URL), nil)
		require.NoError(t, err)

		_, err = oracle.Classify(context.Background(), service.OracleQuery{
			Description: "x", Amount: decimal.NewFromInt(10), Vocabulary: paymentVocabulary,
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrOracleUnavailable)
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestOracle_CustomResponsePath(t *testing.T) {
	var calls atomic.Int32
	server := chatServer(t, &calls, func(w http.ResponseWriter, _ map[string]any) {
		_ = json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"label": "Interest"}})
	})

	cfg := testConfig(server.URL)
	cfg.ResponsePath = "$.result.label"
	oracle, err := NewOracle(context.Background(), cfg, nil)
	require.NoError(t, err)

	label, err := oracle.Classify(context.Background(), service.OracleQuery{
		Description: "coupon", Amount: decimal.NewFromInt(10),
		Vocabulary: []string{"Interest", "Principal Repayment", "Unknown"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Interest", label)
}

type stubClient struct {
	err    error
	answer string
}

func (s stubClient) Complete(context.Context, Request) (string, error) {
	return s.answer, s.err
}

func TestOracle_ClientFailure(t *testing.T) {
	oracle := NewOracleWithClient(stubClient{err: &common.RetryableError{Err: errors.New("boom"), Retryable: false}}, Config{}, nil)
	_, err := oracle.Classify(context.Background(), service.OracleQuery{
		Description: "x", Amount: decimal.NewFromInt(1), Vocabulary: paymentVocabulary,
	})
	assert.ErrorIs(t, err, common.ErrOracleUnavailable)

	_, err = oracle.Classify(context.Background(), service.OracleQuery{Description: "x"})
	assert.ErrorIs(t, err, ErrLabelOutsideVocabulary)
}

func TestNormalizeLabel(t *testing.T) {
	vocab := []string{"Interest", "Principal Repayment", "Unknown"}
	tests := []struct {
		answer string
		want   string
		ok     bool
	}{
		{"Interest", "Interest", true},
		{"  interest. ", "Interest", true},
		{"**Principal Repayment**", "Principal Repayment", true},
		{"The answer is principal repayment", "Principal Repayment", true},
		{"unknown", "Unknown", true},
		{"Principal", "Principal Repayment", true},
		{"principal.", "Principal Repayment", true},
		{"Loan principal", "Principal Repayment", true},
		{"Repayment", "", false},
		{"Dividend", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			got, ok := NormalizeLabel(tt.answer, vocab)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLabelCache(t *testing.T) {
	c := newLabelCache(time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	key := cacheKey("Office Supplies", "10.00", paymentVocabulary)
	c.set(key, "Operating")
	got, ok := c.get(cacheKey("  office supplies", "10.00", paymentVocabulary))
	require.True(t, ok)
	assert.Equal(t, "Operating", got)

	now = now.Add(2 * time.Minute)
	_, ok = c.get(key)
	assert.False(t, ok)

	c.set("other", "Vendor")
	assert.Equal(t, 1, c.size(), "expired entries are pruned on write")
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(60)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.lastRefill = now

	for i := 0; i < 60; i++ {
		_, ok := rl.tryAcquire()
		require.True(t, ok)
	}
	delay, ok := rl.tryAcquire()
	assert.False(t, ok)
	assert.Equal(t, time.Second, delay)

	now = now.Add(1500 * time.Millisecond)
	_, ok = rl.tryAcquire()
	assert.True(t, ok)
	_, ok = rl.tryAcquire()
	assert.False(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, rl.wait(ctx), context.Canceled)
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, 2*time.Second, retryAfter("2"))
	assert.Equal(t, time.Duration(0), retryAfter(""))
	assert.Equal(t, time.Duration(0), retryAfter("Wed, 21 Oct 2015 07:28:00 GMT"))
	assert.Equal(t, time.Duration(0), retryAfter("-1"))
}
