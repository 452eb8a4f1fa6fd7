package protocol

import (
	"io"
	"time"

	"go.uber.org/zap"
)

// Transport is the serial connection over which the protocol runs.
// Represents a simple 2-way noisy wire, typically a UART or USB virtual COM port.
// A Read that returns (0, nil) means no bytes were available yet.
//
// If the transport also implements Flush() error it is flushed when a session
// starts, and if it implements io.Closer it is closed by Session.Close.
type Transport interface {
	io.Reader
	io.Writer
}

type flusher interface {
	Flush() error
}

// rxSerial receives from the serial wire and writes to the rx queue until the
// transport fails or the session is closed. The read error is stored before
// the queue is closed.
func (s *Session) rxSerial() {
	defer close(s.rxBuff)
	rx := make([]byte, 512)
	if f, ok := s.com.(flusher); ok {
		if err := f.Flush(); err != nil {
			s.log.Debug("flush failed", zap.Error(err))
		}
	}
	for {
		nRx, err := s.com.Read(rx)
		if err != nil {
			select {
			case <-s.done:
				s.rxErr = ErrClosed
			default:
				s.rxErr = err
				s.log.Warn("error receiving on serial port", zap.Error(err))
			}
			return
		}
		if nRx == 0 {
			select {
			case <-s.done:
				s.rxErr = ErrClosed
				return
			case <-time.After(s.config.PollInterval):
			}
			continue
		}
		for _, v := range rx[:nRx] {
			select {
			case s.rxBuff <- v:
			case <-s.done:
				s.rxErr = ErrClosed
				return
			}
		}
	}
}

// txSerial writes one frame out, treating a short write as a failure.
func (s *Session) txSerial(frame []byte) error {
	nTx, err := s.com.Write(frame)
	if err == nil && nTx != len(frame) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}
