package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) retryConfig {
	return retryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2,
		ShouldRetry:    func(err error) bool { return !errors.Is(err, errPermanent) },
	}
}

var errPermanent = errors.New("permanent")

func TestRetryVal_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	var retried []int
	cfg := fastRetry(3)
	cfg.OnRetry = func(attempt int, _ error) { retried = append(retried, attempt) }

	v, err := retryVal(context.Background(), cfg, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("not yet")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestRetryVal_Exhausts(t *testing.T) {
	calls := 0
	_, err := retryVal(context.Background(), fastRetry(4), func(context.Context) (int, error) {
		calls++
		return 0, errors.New("down")
	})
	require.Error(t, err)
	assert.Equal(t, 4, calls)
}

func TestRetryVal_StopsOnPermanentError(t *testing.T) {
	calls := 0
	_, err := retryVal(context.Background(), fastRetry(5), func(context.Context) (int, error) {
		calls++
		return 0, fmt.Errorf("connect: %w", errPermanent)
	})
	assert.True(t, errors.Is(err, errPermanent))
	assert.Equal(t, 1, calls)
}

func TestRetryVal_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := retryVal(ctx, fastRetry(5), func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("down")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestBackoff(t *testing.T) {
	cfg := retryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second, Multiplier: 2}
	assert.Equal(t, 100*time.Millisecond, backoff(0, cfg))
	assert.Equal(t, 400*time.Millisecond, backoff(2, cfg))
	assert.Equal(t, time.Second, backoff(10, cfg))

	cfg.JitterFraction = 0.5
	for range 50 {
		d := backoff(0, cfg)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}

func TestIsTransientPG(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"cancelled", context.Canceled, false},
		{"starting up", &pgconn.PgError{Code: "57P03"}, true},
		{"connection failure", &pgconn.PgError{Code: "08006"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"network", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, true},
		{"wrapped network", fmt.Errorf("ping: %w", &net.OpError{Op: "dial", Err: errors.New("refused")}), true},
		{"plain", errors.New("syntax error"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTransientPG(tt.err))
		})
	}
}
