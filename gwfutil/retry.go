/*
Copyright © 2026 the gwfdata authors.
This file is part of gwfdata.

gwfdata is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

gwfdata is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with gwfdata.  If not, see <http://www.gnu.org/licenses/>.
*/

package gwfutil

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gwf/gwfdata"
	"github.com/gwf/gwfdata/cloud"
	"github.com/sirupsen/logrus"
)

// retryTransferer retries failed transfers with exponential backoff.
type retryTransferer struct {
	t       gwfdata.Transferer
	retries int
	log     logrus.FieldLogger

	newBackOff func() backoff.BackOff
}

// WithRetry returns a Transferer that attempts each transfer by t up to
// retries more times after a failure. Cancellation of the context and
// destinations that no transfer can reach are not retried.
func WithRetry(t gwfdata.Transferer, retries int, log logrus.FieldLogger) gwfdata.Transferer {
	if retries <= 0 || t == nil {
		return t
	}
	return &retryTransferer{
		t:       t,
		retries: retries,
		log:     log,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
}

func (r *retryTransferer) Transfer(ctx context.Context, localPath, destination string) (string, error) {
	var loc string
	b := backoff.WithContext(backoff.WithMaxRetries(r.newBackOff(), uint64(r.retries)), ctx)
	err := backoff.RetryNotify(
		func() error {
			var err error
			loc, err = r.t.Transfer(ctx, localPath, destination)
			var addrErr *cloud.AddressError
			if err != nil && (ctx.Err() != nil || errors.As(err, &addrErr)) {
				return backoff.Permanent(err)
			}
			return err
		},
		b,
		func(err error, d time.Duration) {
			r.log.WithFields(logrus.Fields{
				"destination": destination,
				"error":       err.Error(),
			}).Warnf("transfer failed: retrying in %v", d)
		},
	)
	return loc, err
}
