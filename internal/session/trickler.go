package session

import (
	"context"
	"errors"
	"time"

	"github.com/pion/logging"

	"github.com/mpromonet/go-whep-play/internal/domain"
	"github.com/mpromonet/go-whep-play/internal/sdp"
)

// trickler pushes local ICE candidates to the endpoint out-of-band so a
// slow endpoint can never stall the state machine.
type trickler struct {
	signaler domain.Signaler
	handle   *domain.SessionHandle
	offer    *sdp.Description
	timeout  time.Duration
	log      logging.LeveledLogger
	onGone   func()

	updates chan update
}

// update carries one candidate, or the end-of-candidates marker when last
// is set.
type update struct {
	cand domain.Candidate
	last bool
}

func newTrickler(signaler domain.Signaler, handle *domain.SessionHandle, offer *sdp.Description, timeout time.Duration, log logging.LeveledLogger, onGone func()) *trickler {
	return &trickler{
		signaler: signaler,
		handle:   handle,
		offer:    offer,
		timeout:  timeout,
		log:      log,
		onGone:   onGone,
		updates:  make(chan update, 64),
	}
}

// push queues a candidate. Candidates are dropped, not blocked on, when
// the queue is full.
func (t *trickler) push(c domain.Candidate) {
	select {
	case t.updates <- update{cand: c}:
	default:
		t.log.Warnf("trickle queue full, dropping candidate")
	}
}

// finish queues the end-of-candidates marker.
func (t *trickler) finish() {
	select {
	case t.updates <- update{last: true}:
	default:
	}
}

func (t *trickler) run(ctx context.Context) {
	unsupported := false
	for {
		var u update
		select {
		case <-ctx.Done():
			return
		case u = <-t.updates:
		}
		if unsupported {
			if u.last {
				return
			}
			continue
		}

		var body string
		var err error
		if u.last {
			body, err = t.offer.EndOfCandidatesFragment()
		} else {
			body, err = t.offer.TrickleFragment([]domain.Candidate{u.cand})
		}
		if err != nil {
			t.log.Warnf("build trickle fragment: %v", err)
			continue
		}

		reqCtx, cancel := context.WithTimeout(ctx, t.timeout)
		err = t.signaler.Trickle(reqCtx, t.handle, body)
		cancel()
		switch {
		case err == nil:
			t.log.Debugf("trickle update accepted")
		case errors.Is(err, domain.ErrResourceGone):
			t.onGone()
			return
		case errors.Is(err, domain.ErrTrickleUnsupported):
			t.log.Infof("endpoint does not accept trickle updates")
			unsupported = true
		case ctx.Err() != nil:
			return
		default:
			t.log.Warnf("trickle update failed: %v", err)
		}
		if u.last {
			return
		}
	}
}
