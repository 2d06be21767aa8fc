// Package scanner runs barcode/QR scan sessions against a camera. A session
// owns the camera stream exclusively and always releases it when it ends.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/maraudr/console/internal/metrics"
)

var (
	// ErrNoCamera means no capture device exists.
	ErrNoCamera = errors.New("no camera found")
	// ErrCameraFailed means a device exists but could not be started, for
	// instance because permission was denied.
	ErrCameraFailed = errors.New("camera could not be started")
	// ErrNoCode is returned by a Decoder when a frame carries no code.
	ErrNoCode = errors.New("no code in frame")
	// ErrClosed is returned by Open when the scanner was closed while the
	// camera was starting.
	ErrClosed = errors.New("scanner closed")
)

// Device is one capture device.
type Device struct {
	ID    string `json:"deviceId"`
	Label string `json:"label"`
}

// Stream is an open capture stream. Stop must be safe to call more than once.
type Stream interface {
	Frames() <-chan image.Image
	Stop()
}

// Camera enumerates devices and opens streams on them.
type Camera interface {
	Devices(ctx context.Context) ([]Device, error)
	Open(ctx context.Context, deviceID string) (Stream, error)
}

// Decoder extracts a code from a frame, or returns ErrNoCode.
type Decoder interface {
	Decode(img image.Image) (string, error)
}

// State of a scanner.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateDecoded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateScanning:
		return "scanning"
	case StateDecoded:
		return "decoded"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Options configures a Scanner.
type Options struct {
	Camera  Camera
	Decoder Decoder
	OnScan  func(code string)
	Metrics *metrics.Collector
	Logger  *slog.Logger
}

// Status is a snapshot for the scanner page.
type Status struct {
	State     State    `json:"-"`
	StateName string   `json:"state"`
	SessionID string   `json:"sessionId,omitempty"`
	Devices   []Device `json:"devices"`
	Device    *Device  `json:"device,omitempty"`
	Result    string   `json:"result,omitempty"`
	Error     string   `json:"error,omitempty"`
	NoCamera  bool     `json:"noCamera"`
	// Retry is offered after any failure to start the camera.
	Retry bool `json:"retry"`
}

type session struct {
	id     string
	stream Stream
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (s *session) release() {
	s.once.Do(func() {
		s.cancel()
		s.stream.Stop()
	})
}

// Scanner runs at most one session at a time.
type Scanner struct {
	opts Options
	log  *slog.Logger

	mu        sync.Mutex
	gen       uint64 // bumped by Close; a stream opened under an older gen is discarded
	session   *session
	devices   []Device
	deviceIdx int
	state     State
	result    string
	err       error
}

// New creates an idle scanner.
func New(opts Options) *Scanner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{opts: opts, log: logger}
}

// Open starts a scan session, stopping any session already running.
func (s *Scanner) Open(ctx context.Context) error {
	s.Close()
	gen := s.generation()

	devices, err := s.opts.Camera.Devices(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoCamera) {
			err = fmt.Errorf("%w: %w", ErrCameraFailed, err)
		}
		return s.failed(err)
	}
	if len(devices) == 0 {
		return s.failed(ErrNoCamera)
	}

	s.mu.Lock()
	s.devices = devices
	if s.deviceIdx >= len(devices) {
		s.deviceIdx = 0
	}
	device := devices[s.deviceIdx]
	s.mu.Unlock()

	stream, err := s.opts.Camera.Open(ctx, device.ID)
	if err != nil {
		return s.failed(fmt.Errorf("%w: %w", ErrCameraFailed, err))
	}

	if err := s.start(stream, gen); err != nil {
		return err
	}
	s.log.Debug("scan session started", "device", device.Label)
	return nil
}

func (s *Scanner) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

func (s *Scanner) failed(err error) error {
	s.mu.Lock()
	s.state = StateFailed
	s.err = err
	s.mu.Unlock()

	if errors.Is(err, ErrNoCamera) {
		s.opts.Metrics.ScanFinished("no_camera")
	} else {
		s.opts.Metrics.ScanFinished("camera_failed")
	}
	return err
}

// start installs stream as the active session unless Close ran since gen
// was read. A session installed in the meantime is replaced and released.
func (s *Scanner) start(stream Stream, gen uint64) error {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		stream.Stop()
		return ErrClosed
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess := &session{
		id:     uuid.NewString(),
		stream: stream,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	prev := s.session
	s.session = sess
	s.state = StateScanning
	s.result = ""
	s.err = nil
	s.mu.Unlock()

	if prev != nil {
		prev.release()
		<-prev.done
		s.opts.Metrics.ScanFinished("closed")
	}

	go s.run(ctx, sess)
	return nil
}

func (s *Scanner) run(ctx context.Context, sess *session) {
	defer close(sess.done)

	frames := sess.stream.Frames()
	for {
		select {
		case <-ctx.Done():
			return
		case img, ok := <-frames:
			if !ok {
				return
			}
			code, err := s.opts.Decoder.Decode(img)
			if err != nil {
				continue
			}
			s.decoded(sess, code)
			return
		}
	}
}

// decoded ends sess with code. The camera is released before OnScan runs.
func (s *Scanner) decoded(sess *session, code string) {
	s.mu.Lock()
	if s.session != sess {
		s.mu.Unlock()
		return
	}
	s.session = nil
	s.gen++
	s.state = StateDecoded
	s.result = code
	s.mu.Unlock()

	sess.release()
	s.opts.Metrics.ScanFinished("decoded")
	s.log.Debug("code decoded", "session", sess.id)

	if s.opts.OnScan != nil {
		s.opts.OnScan(code)
	}
}

// Close stops the active session, if any, and waits for its decode loop.
func (s *Scanner) Close() {
	s.mu.Lock()
	s.gen++
	sess := s.session
	s.session = nil
	if s.state == StateScanning {
		s.state = StateIdle
	}
	s.mu.Unlock()

	if sess == nil {
		return
	}
	sess.release()
	<-sess.done
	s.opts.Metrics.ScanFinished("closed")
}

// SwitchCamera moves the active session to the next device. Failures are
// logged and leave the current session running.
func (s *Scanner) SwitchCamera(ctx context.Context) {
	s.mu.Lock()
	if s.session == nil || len(s.devices) < 2 {
		s.mu.Unlock()
		return
	}
	next := (s.deviceIdx + 1) % len(s.devices)
	device := s.devices[next]
	gen := s.gen
	s.mu.Unlock()

	stream, err := s.opts.Camera.Open(ctx, device.ID)
	if err != nil {
		s.log.Warn("camera switch failed", "device", device.Label, "error", err)
		return
	}

	s.mu.Lock()
	if s.gen != gen || s.session == nil {
		// Closed or decoded while the new device was starting.
		s.mu.Unlock()
		stream.Stop()
		return
	}
	s.deviceIdx = next
	s.mu.Unlock()

	if err := s.start(stream, gen); err != nil {
		s.log.Debug("camera switch abandoned", "device", device.Label, "error", err)
	}
}

// Status returns the scanner state.
func (s *Scanner) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		State:     s.state,
		StateName: s.state.String(),
		Devices:   append([]Device(nil), s.devices...),
		Result:    s.result,
	}
	if s.session != nil {
		st.SessionID = s.session.id
	}
	if s.deviceIdx < len(s.devices) {
		d := s.devices[s.deviceIdx]
		st.Device = &d
	}
	if s.err != nil {
		st.Error = s.err.Error()
		st.NoCamera = errors.Is(s.err, ErrNoCamera)
		st.Retry = true
	}
	return st
}
