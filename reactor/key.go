// File: reactor/key.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Registration of one connection with one reactor.

package reactor

import (
	"fmt"
	"sync/atomic"

	"github.com/momentics/hioload-nio/api"
)

// Key binds a socket to its reactor. Interest, SetInterest and Ready belong
// to the reactor thread; Cancel and Valid may be called from anywhere.
type Key struct {
	r    *Reactor
	fd   int
	sock api.Socket

	interest   api.Interest
	ready      api.Interest
	attachment Selectable

	canceled atomic.Bool
}

// FD returns the registered descriptor.
func (k *Key) FD() int { return k.fd }

// Reactor returns the owning reactor.
func (k *Key) Reactor() *Reactor { return k.r }

// Attachment returns the endpoint created for this key.
func (k *Key) Attachment() Selectable { return k.attachment }

// Interest returns the interest currently applied to the OS registration.
func (k *Key) Interest() api.Interest {
	k.r.assertInLoop()
	return k.interest
}

// Ready returns the ready set of the dispatch in progress.
func (k *Key) Ready() api.Interest {
	k.r.assertInLoop()
	return k.ready
}

// SetInterest applies interest to the OS registration. The descriptor is
// in the poller exactly while the interest is non-empty.
func (k *Key) SetInterest(interest api.Interest) error {
	k.r.assertInLoop()
	if k.canceled.Load() {
		return ErrKeyCanceled
	}
	if interest == k.interest {
		return nil
	}
	var err error
	switch {
	case interest == 0:
		err = k.r.poller.Delete(k.fd)
	case k.interest == 0:
		err = k.r.poller.Add(k.fd, interest)
	default:
		err = k.r.poller.Modify(k.fd, interest)
	}
	if err != nil {
		if interest == 0 {
			k.interest = 0
		}
		return fmt.Errorf("fd %d interest %s: %w", k.fd, interest, err)
	}
	k.interest = interest
	return nil
}

// Valid reports whether the key has not been canceled.
func (k *Key) Valid() bool { return !k.canceled.Load() }

// Cancel deregisters the key on its reactor thread. It is idempotent.
func (k *Key) Cancel() {
	if k.canceled.Swap(true) {
		return
	}
	k.r.Submit(func() { k.r.deregister(k) })
}
