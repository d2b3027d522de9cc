package service

import (
	"context"
	"time"

	"murmur/internal/modkit/repokit"
	perr "murmur/internal/platform/errors"
	"murmur/internal/platform/metrics"
	"murmur/internal/services/activity/domain"
)

// maxTxAttempts bounds runs of a write transaction postgres aborted on deadlock or serialization failure
const maxTxAttempts = 3

// txBackoff is the pause before the second attempt, it doubles after that
var txBackoff = 20 * time.Millisecond

// inTx runs fn against a store bound to one transaction. fn must reset
// anything it collects since it may run more than once. When every attempt
// hits contention the error is reported as Unavailable.
func (s *Service) inTx(ctx context.Context, op string, fn func(tx domain.Store) error) error {
	wait := txBackoff
	var err error
	for attempt := 1; ; attempt++ {
		err = repokit.WithTx(ctx, s.db, func(q repokit.Queryer) error {
			return fn(repokit.MustBind(s.bind, q))
		})
		if !perr.IsRetryable(err) {
			return err
		}
		if attempt == maxTxAttempts {
			break
		}
		metrics.TxRetry(op)
		s.logc(ctx).Warn().Err(err).Str("op", op).Int("attempt", attempt).Msg("transaction aborted on contention, retrying")

		select {
		case <-ctx.Done():
			return perr.Wrap(ctx.Err(), perr.ErrorCodeUnavailable, op+": canceled while retrying")
		case <-time.After(wait):
		}
		wait *= 2
	}
	return perr.Wrapf(err, perr.ErrorCodeUnavailable, "%s: gave up after %d attempts", op, maxTxAttempts)
}
