package scanner

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
)

// ErrNoActiveStream is returned when a frame arrives while no stream is open.
var ErrNoActiveStream = errors.New("no active camera stream")

// FeedCamera is a Camera whose devices and frames come from the operator's
// browser: the page reports the devices it can see, or the permission error
// it got, and uploads frames while a stream is open.
type FeedCamera struct {
	mu       sync.Mutex
	devices  []Device
	permErr  error
	reported bool
	active   *feedStream
}

// NewFeedCamera creates a camera with no reported devices.
func NewFeedCamera() *FeedCamera {
	return &FeedCamera{}
}

// Report records the browser's device list. A non-empty permission error
// means the browser refused access to the cameras.
func (c *FeedCamera) Report(devices []Device, permissionError string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reported = true
	c.devices = append([]Device(nil), devices...)
	c.permErr = nil
	if permissionError != "" {
		c.permErr = errors.New(permissionError)
	}
}

// Devices implements Camera.
func (c *FeedCamera) Devices(context.Context) ([]Device, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.permErr != nil {
		return nil, c.permErr
	}
	if !c.reported || len(c.devices) == 0 {
		return nil, ErrNoCamera
	}
	return append([]Device(nil), c.devices...), nil
}

// Open implements Camera. Opening a stream stops the previous one.
func (c *FeedCamera) Open(_ context.Context, deviceID string) (Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	found := false
	for _, d := range c.devices {
		if d.ID == deviceID {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("unknown camera %q", deviceID)
	}

	if c.active != nil {
		c.active.stopLocked()
	}
	s := &feedStream{
		camera:   c,
		deviceID: deviceID,
		frames:   make(chan image.Image, 1),
		done:     make(chan struct{}),
	}
	c.active = s
	return s, nil
}

// Push hands an uploaded frame to the open stream. Frames arriving faster
// than the decoder consumes them are dropped.
func (c *FeedCamera) Push(data []byte) error {
	c.mu.Lock()
	s := c.active
	c.mu.Unlock()
	if s == nil {
		return ErrNoActiveStream
	}

	img, err := DecodeFrame(data)
	if err != nil {
		return err
	}

	select {
	case <-s.done:
		return ErrNoActiveStream
	case s.frames <- img:
	default:
	}
	return nil
}

// Streaming reports whether a stream is open, and on which device.
func (c *FeedCamera) Streaming() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return "", false
	}
	return c.active.deviceID, true
}

type feedStream struct {
	camera   *FeedCamera
	deviceID string
	frames   chan image.Image
	done     chan struct{}
	stopped  bool
}

func (s *feedStream) Frames() <-chan image.Image { return s.frames }

func (s *feedStream) Stop() {
	s.camera.mu.Lock()
	defer s.camera.mu.Unlock()
	s.stopLocked()
}

// stopLocked releases the stream. The camera's mutex is held.
func (s *feedStream) stopLocked() {
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.done)
	if s.camera.active == s {
		s.camera.active = nil
	}
}
