package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/logging"

	"github.com/mpromonet/go-whep-play/internal/domain"
	"github.com/mpromonet/go-whep-play/internal/sdp"
)

// Config carries the policy knobs for a Player.
type Config struct {
	// ICEServers seed every connection attempt. Servers advertised by the
	// endpoint are merged in on later attempts.
	ICEServers []domain.ICEServer
	// MaxRetries is the number of reconnect attempts before giving up.
	MaxRetries int
	// BackoffBase is the delay before the first reconnect attempt.
	BackoffBase time.Duration
	// BackoffCap bounds the exponential backoff growth.
	BackoffCap time.Duration
	// ConnectedReset is how long a session must stay connected before the
	// retry budget resets.
	ConnectedReset time.Duration
	// RequestTimeout bounds each signaling exchange.
	RequestTimeout time.Duration
	// Random overrides the backoff jitter source.
	Random RandomSource
	// LoggerFactory overrides the default logger factory.
	LoggerFactory logging.LoggerFactory
}

// Player drives a WHEP playback session from first offer to teardown,
// reconnecting with backoff when an established session is lost. All
// session state is owned by the goroutine running Run.
type Player struct {
	cfg      Config
	signaler domain.Signaler
	engines  domain.EngineFactory
	sink     domain.Sink
	log      logging.LeveledLogger

	mu      sync.Mutex
	state   State
	cancel  context.CancelFunc
	started bool
	done    chan struct{}

	// advertised holds ICE servers from the latest create response, used
	// to seed the next attempt. Only the Run goroutine touches it.
	advertised []domain.ICEServer
}

// New builds a Player over the given signaler, engine factory and sink.
func New(cfg Config, signaler domain.Signaler, engines domain.EngineFactory, sink domain.Sink) *Player {
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 500 * time.Millisecond
	}
	if cfg.BackoffCap < cfg.BackoffBase {
		cfg.BackoffCap = cfg.BackoffBase
	}
	if cfg.ConnectedReset <= 0 {
		cfg.ConnectedReset = 30 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	loggerFactory := cfg.LoggerFactory
	if loggerFactory == nil {
		loggerFactory = logging.NewDefaultLoggerFactory()
	}
	return &Player{
		cfg:      cfg,
		signaler: signaler,
		engines:  engines,
		sink:     sink,
		log:      loggerFactory.NewLogger("session"),
		state:    StateIdle,
		done:     make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Player) setState(s State) {
	p.mu.Lock()
	prev := p.state
	p.state = s
	p.mu.Unlock()
	if prev != s {
		p.log.Debugf("state %s -> %s", prev, s)
	}
}

// Run drives the session until it is stopped or fails for good. It
// returns nil after a requested stop and the terminal error otherwise.
// The sink is told exactly once that the session ended.
func (p *Player) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		cancel()
		return ErrAlreadyStarted
	}
	p.started = true
	p.cancel = cancel
	p.mu.Unlock()
	defer cancel()
	defer close(p.done)

	return p.run(ctx)
}

// Stop requests teardown and waits for Run to return. It is safe to call
// from any goroutine and more than once.
func (p *Player) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-p.done
}

func (p *Player) run(ctx context.Context) error {
	backoff := Backoff{Base: p.cfg.BackoffBase, Cap: p.cfg.BackoffCap, Random: p.cfg.Random}
	retry := 0
	for {
		res := p.attempt(ctx)
		if res.sustained {
			retry = 0
		}
		switch res.outcome {
		case outcomeStopped:
			p.setState(StateClosed)
			p.sink.OnSessionEnded(nil)
			return nil
		case outcomeFatal:
			p.setState(StateFailed)
			p.sink.OnSessionEnded(res.err)
			return res.err
		}

		if retry >= p.cfg.MaxRetries {
			err := ErrReconnectBudget
			if res.err != nil {
				err = fmt.Errorf("%w: last error: %v", ErrReconnectBudget, res.err)
			}
			p.setState(StateFailed)
			p.sink.OnSessionEnded(err)
			return err
		}

		p.setState(StateReconnecting)
		delay := backoff.Delay(retry)
		retry++
		p.log.Infof("reconnecting in %s (attempt %d of %d): %v",
			delay.Round(time.Millisecond), retry, p.cfg.MaxRetries, res.err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.setState(StateClosed)
			p.sink.OnSessionEnded(nil)
			return nil
		case <-timer.C:
		}
	}
}

type outcome int

const (
	outcomeStopped outcome = iota
	outcomeRetry
	outcomeFatal
)

type attemptResult struct {
	outcome   outcome
	err       error
	sustained bool
}

func stopped(sustained bool) attemptResult {
	return attemptResult{outcome: outcomeStopped, sustained: sustained}
}

func retryWith(err error, sustained bool) attemptResult {
	return attemptResult{outcome: outcomeRetry, err: err, sustained: sustained}
}

func fatal(err error) attemptResult {
	return attemptResult{outcome: outcomeFatal, err: err}
}

type eventKind int

const (
	evCandidate eventKind = iota
	evGatherDone
	evConnState
	evTrack
	evTrickleGone
)

// event is one unit of work posted to the attempt loop. Engine callbacks
// and trickle failures are serialized through these.
type event struct {
	kind  eventKind
	cand  domain.Candidate
	state domain.ConnState
	track domain.Track
}

// attempt runs one full negotiation: fresh engine, fresh session resource,
// then the event loop until the attempt ends. The session resource is
// deleted on the way out unless the endpoint already reported it gone.
func (p *Player) attempt(parent context.Context) attemptResult {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	id := uuid.New().String()
	p.log.Infof("attempt %s: negotiating", id)

	engine, err := p.engines.NewEngine(p.iceServers())
	if err != nil {
		return fatal(fmt.Errorf("build media engine: %w", err))
	}
	defer func() {
		if cerr := engine.Close(); cerr != nil {
			p.log.Warnf("engine close: %v", cerr)
		}
	}()

	events := make(chan event, 64)
	post := func(ev event) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}
	engine.SetOnCandidate(func(c domain.Candidate) { post(event{kind: evCandidate, cand: c}) })
	engine.SetOnGatheringComplete(func() { post(event{kind: evGatherDone}) })
	engine.SetOnConnectionState(func(s domain.ConnState) { post(event{kind: evConnState, state: s}) })
	engine.SetOnTrack(func(t domain.Track) { post(event{kind: evTrack, track: t}) })

	if err := engine.AddTransceivers(); err != nil {
		return fatal(fmt.Errorf("add transceivers: %w", err))
	}

	p.setState(StateOffering)
	offerSDP, err := engine.CreateOffer()
	if err != nil {
		return fatal(fmt.Errorf("create offer: %w", err))
	}
	offer, err := sdp.Parse(offerSDP)
	if err != nil {
		return fatal(fmt.Errorf("parse local offer: %w", err))
	}

	p.setState(StateAwaitingAnswer)
	reqCtx, reqCancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	handle, err := p.signaler.CreateSession(reqCtx, offerSDP)
	reqCancel()
	if err != nil {
		if parent.Err() != nil {
			return stopped(false)
		}
		if retryableSignaling(err) {
			return retryWith(err, false)
		}
		return fatal(err)
	}

	gone := false
	defer func() {
		if !gone {
			p.terminate(handle)
		}
	}()

	p.log.Infof("attempt %s: session resource %s", id, handle.ResourceURL)
	if len(handle.ICEServers) > 0 {
		p.advertised = handle.ICEServers
	}

	if err := engine.SetRemoteAnswer(handle.AnswerSDP); err != nil {
		return fatal(err)
	}
	p.setState(StateNegotiated)

	// Candidates embedded in the answer are applied in answer order.
	if answer, perr := sdp.Parse(handle.AnswerSDP); perr == nil {
		for _, c := range answer.Candidates() {
			if aerr := engine.AddRemoteCandidate(c); aerr != nil {
				p.log.Warnf("apply remote candidate: %v", aerr)
			}
		}
	} else {
		p.log.Warnf("parse answer: %v", perr)
	}

	tr := newTrickler(p.signaler, handle, offer, p.cfg.RequestTimeout, p.log, func() {
		post(event{kind: evTrickleGone})
	})
	go tr.run(ctx)

	var (
		buffered   []domain.Track
		forwarding bool
		sustained  bool
		resetTimer *time.Timer
		resetC     <-chan time.Time
	)
	defer func() {
		if resetTimer != nil {
			resetTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return stopped(sustained)

		case <-resetC:
			p.log.Infof("attempt %s: connection stable, retry budget reset", id)
			sustained = true
			resetC = nil

		case ev := <-events:
			switch ev.kind {
			case evCandidate:
				tr.push(ev.cand)

			case evGatherDone:
				tr.finish()

			case evTrack:
				if forwarding {
					p.sink.OnTrack(ev.track)
				} else {
					buffered = append(buffered, ev.track)
				}

			case evTrickleGone:
				p.log.Infof("attempt %s: session resource gone", id)
				gone = true
				return retryWith(domain.ErrResourceGone, sustained)

			case evConnState:
				switch ev.state {
				case domain.ConnStateConnecting:
					p.setState(StateConnecting)
				case domain.ConnStateConnected:
					p.setState(StateConnected)
					if resetTimer == nil && !sustained {
						resetTimer = time.NewTimer(p.cfg.ConnectedReset)
						resetC = resetTimer.C
					}
				case domain.ConnStateDisconnected, domain.ConnStateFailed, domain.ConnStateClosed:
					return retryWith(ErrMediaTransport, sustained)
				}
				if (ev.state == domain.ConnStateConnecting || ev.state == domain.ConnStateConnected) && !forwarding {
					forwarding = true
					for _, t := range buffered {
						p.sink.OnTrack(t)
					}
					buffered = nil
				}
			}
		}
	}
}

// terminate deletes the session resource with a fresh context so a stop
// that cancelled the run context still tears the resource down.
func (p *Player) terminate(handle *domain.SessionHandle) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.RequestTimeout)
	defer cancel()
	if err := p.signaler.Terminate(ctx, handle); err != nil {
		p.log.Warnf("session teardown: %v", err)
	}
}

// iceServers merges the configured servers with those the endpoint
// advertised on the latest create.
func (p *Player) iceServers() []domain.ICEServer {
	return mergeICEServers(p.cfg.ICEServers, p.advertised)
}

func mergeICEServers(base, extra []domain.ICEServer) []domain.ICEServer {
	merged := make([]domain.ICEServer, 0, len(base)+len(extra))
	seen := make(map[string]bool, len(base)+len(extra))
	add := func(list []domain.ICEServer) {
		for _, s := range list {
			if s.URL == "" || seen[s.URL] {
				continue
			}
			seen[s.URL] = true
			merged = append(merged, s)
		}
	}
	add(base)
	add(extra)
	return merged
}

// retryableSignaling reports whether a create failure is worth a fresh
// attempt.
func retryableSignaling(err error) bool {
	var transport *domain.TransportError
	if errors.As(err, &transport) {
		return true
	}
	var rejected *domain.RejectedError
	if errors.As(err, &rejected) {
		return rejected.Retryable()
	}
	return false
}
