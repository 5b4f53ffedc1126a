package dataflows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	pkgerrors "github.com/dyike/CortexOffice/pkg/errors"
)

func fastRetry() *RetryConfig {
	return &RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
}

func TestWithRetry(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), fastRetry(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)

	attempts = 0
	err = WithRetry(context.Background(), fastRetry(), func() error {
		attempts++
		return errors.New("down")
	})
	assert.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), fastRetry(), func() error {
		attempts++
		return pkgerrors.ErrQuoteUnavailable
	})
	assert.ErrorIs(t, err, pkgerrors.ErrQuoteUnavailable)
	assert.Equal(t, 1, attempts)
}

func TestValidateSymbol(t *testing.T) {
	for _, ok := range []string{"AAPL", "brk.b", " msft ", "0700.HK"} {
		assert.NoError(t, ValidateSymbol(ok), ok)
	}
	for _, bad := range []string{"", "   ", "INVALID_TICKER", "WAYTOOLONGSYMBOL", "A B"} {
		assert.Error(t, ValidateSymbol(bad), bad)
	}
}
