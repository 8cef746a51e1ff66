package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/Veraticus/treasury-vouchers/internal/common"
	"github.com/Veraticus/treasury-vouchers/internal/service"
)

// ErrLabelOutsideVocabulary is returned when the model answers with a label
// the caller did not offer.
var ErrLabelOutsideVocabulary = errors.New("label outside vocabulary")

// Oracle classifies GL descriptions into one label of a fixed vocabulary.
type Oracle struct {
	client    Client
	cache     *labelCache
	limiter   *rateLimiter
	logger    *slog.Logger
	retryOpts service.RetryOptions
	timeout   time.Duration
}

// NewOracle builds an oracle around the provider configured in cfg.
func NewOracle(ctx context.Context, cfg Config, logger *slog.Logger) (*Oracle, error) {
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return NewOracleWithClient(client, cfg, logger), nil
}

// NewOracleWithClient wraps an existing client.
func NewOracleWithClient(client Client, cfg Config, logger *slog.Logger) *Oracle {
	if logger == nil {
		logger = slog.Default()
	}

	retryOpts := service.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}
	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 3
	}
	if retryOpts.InitialDelay == 0 {
		retryOpts.InitialDelay = 500 * time.Millisecond
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &Oracle{
		client:    client,
		cache:     newLabelCache(cfg.CacheTTL),
		limiter:   newRateLimiter(cfg.RateLimit),
		logger:    logger,
		retryOpts: retryOpts,
		timeout:   timeout,
	}
}

// Classify asks the model for one label of q.Vocabulary.
func (o *Oracle) Classify(ctx context.Context, q service.OracleQuery) (string, error) {
	if len(q.Vocabulary) == 0 {
		return "", fmt.Errorf("%w: empty vocabulary", ErrLabelOutsideVocabulary)
	}

	key := cacheKey(q.Description, q.Amount.StringFixed(2), q.Vocabulary)
	if label, ok := o.cache.get(key); ok {
		o.logger.Debug("oracle cache hit", "description", q.Description, "label", label)
		return label, nil
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	req := Request{
		System: systemPrompt(q.Vocabulary),
		Prompt: fmt.Sprintf("GL Account Description: %s\nAmount: %s", q.Description, q.Amount.StringFixed(2)),
	}

	var answer string
	err := common.WithRetry(ctx, "oracle request", o.retryOpts, func(ctx context.Context) error {
		if err := o.limiter.wait(ctx); err != nil {
			return common.Permanent(err)
		}
		text, err := o.client.Complete(ctx, req)
		if err != nil {
			return err
		}
		answer = text
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrOracleUnavailable, err)
	}

	label, ok := NormalizeLabel(answer, q.Vocabulary)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrLabelOutsideVocabulary, strings.TrimSpace(answer))
	}

	o.cache.set(key, label)
	return label, nil
}

func systemPrompt(vocabulary []string) string {
	return "You are a strict classifier for public finance transactions. " +
		"Given a GL account description, reply with exactly one label: " +
		strings.Join(vocabulary, ", ") + ". Reply with the label only."
}

// NormalizeLabel maps a model answer onto the vocabulary. An exact
// case-insensitive match wins; otherwise the longest label contained in the
// answer is used. Failing that, an answer naming only the leading word of a
// multi-word label ("Principal") maps to that label.
func NormalizeLabel(answer string, vocabulary []string) (string, bool) {
	cleaned := strings.Trim(strings.TrimSpace(answer), " .\"'`*")
	for _, label := range vocabulary {
		if strings.EqualFold(cleaned, label) {
			return label, true
		}
	}

	lower := strings.ToLower(cleaned)
	candidates := append([]string(nil), vocabulary...)
	sort.SliceStable(candidates, func(i, j int) bool {
		return len(candidates[i]) > len(candidates[j])
	})
	for _, label := range candidates {
		if label != "" && strings.Contains(lower, strings.ToLower(label)) {
			return label, true
		}
	}

	words := strings.Fields(lower)
	for _, label := range candidates {
		parts := strings.Fields(strings.ToLower(label))
		if len(parts) < 2 {
			continue
		}
		if slices.Contains(words, parts[0]) {
			return label, true
		}
	}
	return "", false
}
