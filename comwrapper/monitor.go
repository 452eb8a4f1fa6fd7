package comwrapper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/RoanBrand/LWNXProtocol/config"
	"github.com/RoanBrand/LWNXProtocol/protocol"
)

// Device connection states.
const (
	StateOpening     = "opening"
	StateIdentifying = "identifying"
	StateConfiguring = "configuring"
	StateStreaming   = "streaming"
	StateIdle        = "idle"
	StateStopped     = "stopped"
)

// Status is a snapshot of one monitored device.
type Status struct {
	Name        string                `json:"name"`
	Port        string                `json:"port"`
	State       string                `json:"state"`
	Info        *protocol.ProductInfo `json:"info,omitempty"`
	Frames      uint64                `json:"frames"`
	LastFrame   time.Time             `json:"lastFrame,omitempty"`
	LastPayload []byte                `json:"lastPayload,omitempty"`
	Reconnects  int                   `json:"reconnects"`
	LastError   string                `json:"lastError,omitempty"`
}

// Ready reports whether the device has been identified and is being served.
func (s Status) Ready() bool {
	return s.Info != nil && (s.State == StateStreaming || s.State == StateIdle)
}

// Dialer opens the transport for a device.
type Dialer func(dev config.DeviceConfig) (protocol.Transport, error)

func dialSerial(dev config.DeviceConfig) (protocol.Transport, error) {
	return Open(dev.Port, dev.Baud, dev.ReadTimeout)
}

// LinkRecorder receives link and connection statistics. metrics.DeviceRecorder implements it.
type LinkRecorder interface {
	protocol.Recorder
	SetConnected(up bool)
	Reconnected()
}

// Monitor keeps one device connected: open the port, identify the device,
// apply its setup writes and then receive its stream. Any failure closes the
// port and restarts the cycle.
type Monitor struct {
	dev      config.DeviceConfig
	proto    config.ProtocolConfig
	log      *zap.Logger
	dial     Dialer
	recorder LinkRecorder

	reopenDelay  time.Duration
	restartDelay time.Duration

	mu     sync.RWMutex
	status Status
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithDialer replaces the serial port dialer.
func WithDialer(d Dialer) MonitorOption {
	return func(m *Monitor) { m.dial = d }
}

// WithLinkRecorder installs a statistics recorder.
func WithLinkRecorder(r LinkRecorder) MonitorOption {
	return func(m *Monitor) { m.recorder = r }
}

// WithBackoff sets the delay between failed opens and the delay before
// reopening after a fatal error.
func WithBackoff(reopen, restart time.Duration) MonitorOption {
	return func(m *Monitor) {
		m.reopenDelay = reopen
		m.restartDelay = restart
	}
}

func NewMonitor(dev config.DeviceConfig, proto config.ProtocolConfig, logger *zap.Logger, opts ...MonitorOption) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Monitor{
		dev:          dev,
		proto:        proto,
		log:          logger.With(zap.String("device", dev.Name), zap.String("port", dev.Port)),
		dial:         dialSerial,
		reopenDelay:  5 * time.Second,
		restartDelay: 2 * time.Second,
		status:       Status{Name: dev.Name, Port: dev.Port, State: StateOpening},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Status returns a copy of the current device status.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.status
	if s.Info != nil {
		info := *s.Info
		s.Info = &info
	}
	s.LastPayload = append([]byte(nil), s.LastPayload...)
	return s
}

func (m *Monitor) update(fn func(s *Status)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.status)
}

func (m *Monitor) setState(state string) {
	m.update(func(s *Status) { s.State = state })
}

// ListenAndServe services the device until ctx is cancelled.
func (m *Monitor) ListenAndServe(ctx context.Context) error {
	defer m.setState(StateStopped)
	for {
		com, err := m.open(ctx)
		if err != nil {
			return err
		}

		// Open success.
		m.log.Info("started service")
		err = m.serve(ctx, com)
		if m.recorder != nil {
			m.recorder.SetConnected(false)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.log.Warn("fatal error, closing COM port", zap.Error(err))
		m.update(func(s *Status) {
			s.State = StateOpening
			s.Info = nil
			s.LastError = err.Error()
			s.Reconnects++
		})
		if m.recorder != nil {
			m.recorder.Reconnected()
		}
		if !sleep(ctx, m.restartDelay) {
			return ctx.Err()
		}
	}
}

// open attempts to open the COM port, retrying until it succeeds.
func (m *Monitor) open(ctx context.Context) (protocol.Transport, error) {
	m.setState(StateOpening)
	firstTryDone := false
	for {
		com, err := m.dial(m.dev)
		if err == nil {
			return com, nil
		}
		if !firstTryDone {
			m.log.Error("error opening COM port, retrying", zap.Error(err), zap.Duration("every", m.reopenDelay))
			m.update(func(s *Status) { s.LastError = err.Error() })
			firstTryDone = true
		}
		if !sleep(ctx, m.reopenDelay) {
			return nil, ctx.Err()
		}
	}
}

func (m *Monitor) serve(ctx context.Context, com protocol.Transport) error {
	opts := []protocol.Option{
		protocol.WithLogger(m.log),
		protocol.WithTimeout(m.proto.Timeout),
		protocol.WithRetries(m.proto.Retries),
		protocol.WithMinInterval(m.proto.MinInterval),
	}
	if m.recorder != nil {
		opts = append(opts, protocol.WithRecorder(m.recorder))
	}
	session := protocol.NewSession(com, opts...)
	defer session.Close()

	m.setState(StateIdentifying)
	info, err := session.ReadProductInfo(ctx)
	if err != nil {
		return fmt.Errorf("identify: %w", err)
	}
	m.log.Info("device identified",
		zap.String("product", info.Name),
		zap.Uint32("hardware", info.HardwareVersion),
		zap.Uint32("firmware", info.FirmwareVersion),
		zap.String("serial", info.SerialNumber))
	m.update(func(s *Status) { s.Info = &info })
	if m.recorder != nil {
		m.recorder.SetConnected(true)
	}

	m.setState(StateConfiguring)
	for i, w := range m.dev.Setup {
		if err := applySetup(ctx, session, w); err != nil {
			return fmt.Errorf("setup[%d] command %d: %w", i, w.Command, err)
		}
	}

	if !m.dev.Stream {
		m.setState(StateIdle)
		return m.idle(ctx, session)
	}

	m.setState(StateStreaming)
	command := byte(m.dev.StreamCommand)
	for {
		p, err := session.WaitFor(ctx, command, m.dev.StreamTimeout)
		if errors.Is(err, protocol.ErrNoFrame) {
			return fmt.Errorf("stream stalled: no command %d frame for %v", command, m.dev.StreamTimeout)
		}
		if err != nil {
			return err
		}
		now := time.Now()
		m.update(func(s *Status) {
			s.Frames++
			s.LastFrame = now
			s.LastPayload = p.Payload
		})
	}
}

// idle keeps reading from a device that does not stream so that a failed
// transport is noticed. Unsolicited frames are dropped.
func (m *Monitor) idle(ctx context.Context, session *protocol.Session) error {
	wait := m.dev.StreamTimeout
	if wait <= 0 {
		wait = time.Second
	}
	for {
		p, err := session.WaitAny(ctx, wait)
		if errors.Is(err, protocol.ErrNoFrame) {
			continue
		}
		if err != nil {
			return err
		}
		m.log.Debug("unsolicited frame while idle", zap.Stringer("frame", p))
	}
}

func applySetup(ctx context.Context, s *protocol.Session, w config.SetupWrite) error {
	cmd := byte(w.Command)
	switch w.Type {
	case config.TypeUint8:
		return s.WriteUint8(ctx, cmd, uint8(w.Value))
	case config.TypeInt8:
		return s.WriteInt8(ctx, cmd, int8(w.Value))
	case config.TypeUint16:
		return s.WriteUint16(ctx, cmd, uint16(w.Value))
	case config.TypeInt16:
		return s.WriteInt16(ctx, cmd, int16(w.Value))
	case config.TypeUint32:
		return s.WriteUint32(ctx, cmd, uint32(w.Value))
	case config.TypeInt32:
		return s.WriteInt32(ctx, cmd, int32(w.Value))
	case config.TypeString:
		return s.WriteString(ctx, cmd, w.Text)
	case config.TypeData:
		return s.WriteData(ctx, cmd, w.Bytes())
	}
	return fmt.Errorf("unknown setup type %q", w.Type)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
