package filetransfer

import (
	"context"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"

	"github.com/armadaproject/launchpad/internal/common/launchpaderrors"
)

// RetryingService retries failed transfers of an underlying Service with a fixed delay between attempts.
// Only transfer errors are retried; local I/O errors are returned immediately.
type RetryingService struct {
	delegate Service
	attempts uint
	delay    time.Duration
}

func NewRetryingService(delegate Service, attempts uint, delay time.Duration) *RetryingService {
	if attempts == 0 {
		attempts = 1
	}
	return &RetryingService{
		delegate: delegate,
		attempts: attempts,
		delay:    delay,
	}
}

func (s *RetryingService) GetFile(ctx context.Context, source, destination string) error {
	log := loggerFor(ctx).WithField("source", source)
	return retry.Do(
		func() error {
			return s.delegate.GetFile(ctx, source, destination)
		},
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(s.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var e *launchpaderrors.ErrTransfer
			return errors.As(err, &e)
		}),
		retry.OnRetry(func(n uint, err error) {
			log.WithError(err).Warnf("transfer attempt %d of %d failed", n+1, s.attempts)
		}),
	)
}
