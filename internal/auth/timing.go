package auth

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingConfig holds configuration for failed-submission delays
type TimingConfig struct {
	BaseDelayMs   int // Base delay in milliseconds
	RandomDelayMs int // Random delay range in milliseconds
}

// FailureDelay slows down rejected password submissions by a jittered amount
type FailureDelay struct {
	config TimingConfig
}

// NewFailureDelay creates a new FailureDelay instance
func NewFailureDelay(config TimingConfig) *FailureDelay {
	return &FailureDelay{
		config: config,
	}
}

// cryptoRandIntn returns a secure random number between 0 and max (exclusive)
func cryptoRandIntn(max int) (int, error) {
	if max <= 0 {
		return 0, nil
	}

	randomBytes := make([]byte, 8)
	if _, err := rand.Read(randomBytes); err != nil {
		return 0, err
	}

	randomValue := binary.BigEndian.Uint64(randomBytes)
	return int(randomValue % uint64(max)), nil
}

// Duration picks the delay for one failure: base + [0, random)
func (fd *FailureDelay) Duration() time.Duration {
	delay := time.Duration(fd.config.BaseDelayMs) * time.Millisecond
	if fd.config.RandomDelayMs > 0 {
		if randomValue, err := cryptoRandIntn(fd.config.RandomDelayMs); err == nil {
			delay += time.Duration(randomValue) * time.Millisecond
		}
	}
	return delay
}

// Wait blocks for one failure delay or until ctx is done
func (fd *FailureDelay) Wait(ctx context.Context) error {
	delay := fd.Duration()
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
