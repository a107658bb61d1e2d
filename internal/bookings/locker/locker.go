// Package locker provides mutual exclusion per (doctor, date) with a bounded wait.
//
// Requests for different keys never wait on each other. When the wait exceeds the configured
// timeout, or the context ends first, Acquire fails with ErrLockTimeout.
package locker

import (
	"context"
	"fmt"
	"time"

	bookingserrors "docslot/internal/bookings/errors"
)

// Key scopes one critical section: every booking write for a doctor on a calendar date.
type Key struct {
	DoctorID string
	Date     string
}

func (k Key) String() string {
	return k.DoctorID + ":" + k.Date
}

// Lease is a held lock. Release is safe to call more than once.
type Lease interface {
	Release(ctx context.Context) error
}

type Locker interface {
	Acquire(ctx context.Context, key Key) (Lease, error)
	Backend() string
}

// Options shared by the distributed backends.
type Options struct {
	AcquireTimeout time.Duration
	TTL            time.Duration
	RetryInterval  time.Duration
}

func (o Options) withDefaults() Options {
	if o.AcquireTimeout <= 0 {
		o.AcquireTimeout = 5 * time.Second
	}
	if o.TTL <= 0 {
		o.TTL = 30 * time.Second
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = 50 * time.Millisecond
	}
	return o
}

// poll calls try until it reports success, fails hard, or the acquire budget runs out.
func poll(ctx context.Context, key Key, opts Options, try func(ctx context.Context) (bool, error)) error {
	ctx, cancel := context.WithTimeout(ctx, opts.AcquireTimeout)
	defer cancel()

	ticker := time.NewTicker(opts.RetryInterval)
	defer ticker.Stop()

	for {
		ok, err := try(ctx)
		if err != nil && ctx.Err() == nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s after %s", bookingserrors.ErrLockTimeout, key, opts.AcquireTimeout)
		case <-ticker.C:
		}
	}
}
