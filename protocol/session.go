package protocol

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Request describes one command exchange.
type Request struct {
	Command byte
	Write   bool
	Payload []byte

	// Timeout and Retries override the session defaults when positive.
	// Set Retries to 1 for writes that must not be applied twice.
	Timeout time.Duration
	Retries int
}

// Session drives the request/acknowledge discipline over one transport.
// Only one request is outstanding at a time; concurrent callers are serialised.
// Each connection needs its own Session.
type Session struct {
	com    Transport
	config Config
	log    *zap.Logger
	pace   *rate.Limiter

	mu     sync.Mutex // held for the duration of a request or wait
	parser Parser

	rxBuff chan byte
	rxErr  error // valid once rxBuff is closed

	done      chan struct{}
	closeOnce sync.Once
}

// NewSession starts receiving from com. The session owns the receive side of com
// until Close is called.
func NewSession(com Transport, opts ...Option) *Session {
	if com == nil {
		panic("transport cannot be nil")
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Session{
		com:    com,
		config: cfg,
		log:    cfg.Logger,
		rxBuff: make(chan byte, cfg.RxBufferSize),
		done:   make(chan struct{}),
	}
	if cfg.MinInterval > 0 {
		s.pace = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}
	go s.rxSerial()
	return s
}

// Close stops the receive loop and closes the transport if it is closable.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		if c, ok := s.com.(io.Closer); ok {
			err = c.Close()
		}
	})
	return err
}

// Execute sends a command using the session's timeout and retry count and
// returns the first valid response carrying the same command id.
func (s *Session) Execute(ctx context.Context, command byte, write bool, payload []byte) (*Packet, error) {
	return s.Do(ctx, Request{Command: command, Write: write, Payload: payload})
}

// Do sends req and waits for its response. Each attempt writes the full frame
// again and waits up to the timeout; frames for other commands and corrupt
// frames are discarded. When every attempt goes unanswered the error is a
// *RequestTimeoutError. Transport failures are returned immediately.
func (s *Session) Do(ctx context.Context, req Request) (*Packet, error) {
	frame, err := Encode(req.Command, req.Write, req.Payload)
	if err != nil {
		return nil, err
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = s.config.Timeout
	}
	retries := req.Retries
	if retries <= 0 {
		retries = s.config.Retries
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	attempts := 0
	for attempts < retries {
		if err := s.send(ctx, frame); err != nil {
			s.requestDone(req.Command, err, attempts, start)
			return nil, err
		}
		attempts++
		if attempts > 1 && req.Write {
			s.log.Warn("write command re-sent, device may apply it more than once",
				zap.Uint8("cmd", req.Command), zap.Int("attempt", attempts))
		}

		p, err := s.waitFor(ctx, func(p *Packet) bool { return p.Command == req.Command }, timeout)
		if err == nil {
			s.requestDone(req.Command, nil, attempts, start)
			return p, nil
		}
		if !errors.Is(err, ErrNoFrame) {
			s.requestDone(req.Command, err, attempts, start)
			return nil, err
		}
		s.log.Debug("no response to command",
			zap.Uint8("cmd", req.Command), zap.Int("attempt", attempts), zap.Int("retries", retries))
	}

	err = &RequestTimeoutError{
		Command:  req.Command,
		Write:    req.Write,
		Attempts: attempts,
		Elapsed:  time.Since(start),
	}
	s.requestDone(req.Command, err, attempts, start)
	return nil, err
}

// WaitFor waits up to timeout for a frame with the given command id, such as
// the unsolicited frames a device sends in streaming mode. It returns ErrNoFrame
// when the deadline passes.
func (s *Session) WaitFor(ctx context.Context, command byte, timeout time.Duration) (*Packet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waitFor(ctx, func(p *Packet) bool { return p.Command == command }, timeout)
}

// WaitAny waits up to timeout for any valid frame.
func (s *Session) WaitAny(ctx context.Context, timeout time.Duration) (*Packet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waitFor(ctx, func(*Packet) bool { return true }, timeout)
}

// send writes one frame, honouring the minimum inter-frame interval.
func (s *Session) send(ctx context.Context, frame []byte) error {
	if s.pace != nil {
		if err := s.pace.Wait(ctx); err != nil {
			return err
		}
	}
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	return s.txSerial(frame)
}

// waitFor feeds received bytes to the parser until match accepts a frame or
// the deadline passes. A partial frame is dropped when the wait is abandoned.
func (s *Session) waitFor(ctx context.Context, match func(*Packet) bool, timeout time.Duration) (*Packet, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case b, ok := <-s.rxBuff:
			if !ok {
				s.parser.Reset()
				if errors.Is(s.rxErr, ErrClosed) {
					return nil, ErrClosed
				}
				return nil, &TransportError{Op: "read", Err: s.rxErr}
			}
			p, ev := s.parser.FeedByte(b)
			if ev == EventNone {
				continue
			}
			if p == nil {
				s.frameReceived(ev.String())
				s.log.Debug("dropped invalid frame", zap.Stringer("reason", ev))
				continue
			}
			if match(p) {
				s.frameReceived(ev.String())
				return p, nil
			}
			s.frameReceived("unexpected")
			s.log.Debug("discarding unexpected frame", zap.Stringer("frame", p))
		case <-deadline.C:
			s.parser.Reset()
			return nil, ErrNoFrame
		case <-ctx.Done():
			s.parser.Reset()
			return nil, ctx.Err()
		case <-s.done:
			s.parser.Reset()
			return nil, ErrClosed
		}
	}
}

func (s *Session) frameReceived(result string) {
	if s.config.Recorder != nil {
		s.config.Recorder.FrameReceived(result)
	}
}

func (s *Session) requestDone(command byte, err error, attempts int, start time.Time) {
	if s.config.Recorder == nil {
		return
	}
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrRequestTimeout):
		result = "timeout"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		result = "cancelled"
	default:
		result = "transport"
	}
	s.config.Recorder.RequestDone(command, result, attempts, time.Since(start))
}
