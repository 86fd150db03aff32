// Package device owns the GPU device and queue for one offscreen run and the
// poll loop that drives asynchronous work on them.
//
// HAL devices expose no blocking "map buffer" call. A Session records the
// index of every submission and keeps a list of pending buffer reads; each
// Poll pass asks the queue which submissions have completed, without
// blocking, and resolves the reads whose submissions are done. Nothing
// resolves unless something polls, which is the job of PollLoop.
package device

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unsafe"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Register the Vulkan HAL backend.
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// copyPitchAlignment is the bytes-per-row alignment for texture-to-buffer
// copies on every backend wgpu supports.
const copyPitchAlignment = 256

// waitStep is the sleep between completion checks in a blocking Poll.
const waitStep = time.Millisecond

// pendingMap is a buffer read waiting for submission index after.
type pendingMap struct {
	id     uint64
	after  uint64
	buf    hal.Buffer
	offset uint64
	dst    []byte
	done   func(error)
}

// Session owns a device/queue pair and the submission bookkeeping.
//
// Session implements gpucontext.DeviceProvider for headless use and Poller
// so that a PollLoop can drive it.
type Session struct {
	opts     options
	instance hal.Instance
	adapter  hal.Adapter
	device   hal.Device
	queue    hal.Queue

	adapterName string
	deviceType  gputypes.DeviceType

	// life is held for reading by a Poll pass and for writing by Close,
	// so the device outlives every pass in flight.
	life sync.RWMutex

	// reading is held while a Poll pass picks ready reads and copies them
	// out, so a cancelled read never touches a buffer after its owner has
	// been told it is free to destroy it.
	reading sync.Mutex

	mu        sync.Mutex
	submitted uint64
	completed uint64
	nextMapID uint64
	pending   []pendingMap
	// draining refuses new work; set by the first Drain or Close.
	draining bool
	closed   bool

	loop *PollLoop

	drainOnce sync.Once
	drainErr  error
	closeOnce sync.Once
}

var (
	_ gpucontext.DeviceProvider = (*Session)(nil)
	_ Poller                    = (*Session)(nil)
)

// Open selects an adapter and opens a device and queue on it.
//
// It returns ErrNoBackend, ErrNoAdapter or ErrDeviceRequest (wrapped) when
// no usable GPU exists. There is no software fallback.
func Open(ctx context.Context, opts ...Option) (*Session, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	factory := o.factory
	if factory == nil {
		backend, ok := hal.GetBackend(o.backend)
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrNoBackend, o.backend)
		}
		factory = backend
	}

	instance, err := factory.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("%w: create instance: %w", ErrNoAdapter, err)
	}

	adapters := instance.EnumerateAdapters(nil)
	for _, a := range adapters {
		slogger().Debug("device: adapter found", "name", a.Info.Name, "type", a.Info.DeviceType, "driver", a.Info.Driver)
	}
	selected := selectAdapter(adapters, o)
	if selected == nil {
		instance.Destroy()
		if o.adapterName != "" {
			return nil, fmt.Errorf("%w: none of %d adapters matches %q", ErrNoAdapter, len(adapters), o.adapterName)
		}
		return nil, ErrNoAdapter
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("%w: %s: %w", ErrDeviceRequest, selected.Info.Name, err)
	}

	s := &Session{
		opts:        o,
		instance:    instance,
		adapter:     selected.Adapter,
		device:      openDev.Device,
		queue:       openDev.Queue,
		adapterName: selected.Info.Name,
		deviceType:  selected.Info.DeviceType,
	}
	slogger().Info("device: adapter selected", "adapter", s.adapterName, "type", s.deviceType)
	return s, nil
}

// selectAdapter applies the name filter, then ranks by power preference.
// Unknown device types rank last but remain eligible.
func selectAdapter(adapters []hal.ExposedAdapter, o options) *hal.ExposedAdapter {
	var best *hal.ExposedAdapter
	bestRank := -1
	for i := range adapters {
		a := &adapters[i]
		if o.adapterName != "" && !strings.Contains(strings.ToLower(a.Info.Name), o.adapterName) {
			continue
		}
		if r := adapterRank(a.Info.DeviceType, o.power); r > bestRank {
			best, bestRank = a, r
		}
	}
	return best
}

func adapterRank(t gputypes.DeviceType, p PowerPreference) int {
	switch t {
	case gputypes.DeviceTypeDiscreteGPU:
		if p == PowerHighPerformance {
			return 3
		}
		return 2
	case gputypes.DeviceTypeIntegratedGPU:
		if p == PowerLowPower {
			return 3
		}
		return 2
	case gputypes.DeviceTypeVirtualGPU:
		return 1
	default:
		return 0
	}
}

// HalDevice returns the HAL device.
func (s *Session) HalDevice() hal.Device { return s.device }

// HalQueue returns the HAL queue.
func (s *Session) HalQueue() hal.Queue { return s.queue }

// Device returns the device as a gpucontext token.
func (s *Session) Device() gpucontext.Device { return s.device }

// Queue returns the queue as a gpucontext token.
func (s *Session) Queue() gpucontext.Queue { return s.queue }

// Adapter returns the selected adapter as a gpucontext token.
func (s *Session) Adapter() gpucontext.Adapter { return s.adapter }

// SurfaceFormat returns TextureFormatUndefined: a Session never has a surface.
func (s *Session) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}

// AdapterInfo returns the selected adapter's name and class.
func (s *Session) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: s.adapterName, Type: adapterType(s.deviceType)}
}

func adapterType(t gputypes.DeviceType) gpucontext.AdapterType {
	switch t {
	case gputypes.DeviceTypeDiscreteGPU:
		return gpucontext.AdapterTypeDiscrete
	case gputypes.DeviceTypeIntegratedGPU:
		return gpucontext.AdapterTypeIntegrated
	case gputypes.DeviceTypeCPU:
		return gpucontext.AdapterTypeSoftware
	default:
		return gpucontext.AdapterTypeUnknown
	}
}

// RowAlignment returns the bytes-per-row alignment for texture-to-buffer copies.
func (s *Session) RowAlignment() uint32 { return copyPitchAlignment }

// Submit appends command buffers to the queue and returns the submission
// index the queue assigned.
func (s *Session) Submit(cmds ...hal.CommandBuffer) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draining {
		return 0, ErrSessionClosed
	}
	index, err := s.queue.Submit(cmds)
	if err != nil {
		return 0, fmt.Errorf("submit: %w", err)
	}
	if index > s.submitted {
		s.submitted = index
	}
	slogger().Debug("device: submitted", "index", index, "command_buffers", len(cmds))
	return index, nil
}

// MapBuffer schedules a read of len(dst) bytes of buf at offset. The read
// waits for every submission made before the call. done runs on the
// goroutine that polls the session.
//
// The returned cancel drops the read if it has not run yet and otherwise
// waits for it to finish, so buf may be destroyed once cancel returns. done
// is not called for a cancelled read.
func (s *Session) MapBuffer(buf hal.Buffer, offset uint64, dst []byte, done func(error)) (cancel func()) {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		done(ErrSessionClosed)
		return func() {}
	}
	s.nextMapID++
	id := s.nextMapID
	s.pending = append(s.pending, pendingMap{
		id:     id,
		after:  s.submitted,
		buf:    buf,
		offset: offset,
		dst:    dst,
		done:   done,
	})
	s.mu.Unlock()
	return func() { s.cancelMap(id) }
}

func (s *Session) cancelMap(id uint64) {
	s.reading.Lock()
	defer s.reading.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.pending {
		if p.id == id {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}

// Pending returns the number of reads waiting to be resolved.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Poll makes one pass of progress: it checks which submissions have
// completed and resolves pending reads that waited for them. With wait false
// it never blocks; with wait true it waits up to the configured timeout for
// the latest submission.
func (s *Session) Poll(wait bool) {
	s.life.RLock()
	defer s.life.RUnlock()

	s.mu.Lock()
	if s.closed || len(s.pending) == 0 {
		s.mu.Unlock()
		return
	}
	target := s.submitted
	s.mu.Unlock()

	completed := s.queue.PollCompleted()
	if wait && completed < target {
		deadline := time.Now().Add(s.opts.waitTimeout)
		for completed < target && time.Now().Before(deadline) {
			time.Sleep(waitStep)
			completed = s.queue.PollCompleted()
		}
	}

	ready, results := s.readReady(completed)
	for i, p := range ready {
		p.done(results[i])
	}
}

// readReady takes the reads whose submissions have completed off the
// pending list and copies them out. Callbacks are left to the caller so
// they run without any session lock held.
func (s *Session) readReady(completed uint64) ([]pendingMap, []error) {
	s.reading.Lock()
	defer s.reading.Unlock()

	s.mu.Lock()
	if completed > s.completed {
		s.completed = completed
	}
	var ready []pendingMap
	kept := s.pending[:0]
	for _, p := range s.pending {
		if p.after <= s.completed {
			ready = append(ready, p)
		} else {
			kept = append(kept, p)
		}
	}
	s.pending = kept
	s.mu.Unlock()

	// A read that panics puts itself and the reads after it back, so the
	// poll loop can fail them.
	n := 0
	defer func() {
		if n < len(ready) {
			s.mu.Lock()
			s.pending = append(s.pending, ready[n:]...)
			s.mu.Unlock()
		}
	}()
	results := make([]error, len(ready))
	for i, p := range ready {
		results[i] = s.read(p)
		n++
	}
	return ready, results
}

// read copies the pending range out of a host-visible mapping.
func (s *Session) read(p pendingMap) error {
	if len(p.dst) == 0 {
		return nil
	}
	m, err := s.device.MapBuffer(p.buf, p.offset, uint64(len(p.dst)))
	if err != nil {
		return fmt.Errorf("map buffer: %w", err)
	}
	copy(p.dst, unsafe.Slice((*byte)(m.Ptr), len(p.dst)))
	if err := s.device.UnmapBuffer(p.buf); err != nil {
		return fmt.Errorf("unmap buffer: %w", err)
	}
	return nil
}

// failPending fails every read still waiting with err.
func (s *Session) failPending(err error) {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, p := range pending {
		p.done(err)
	}
}

// StartPollLoop starts a PollLoop over the session, once. Drain and Close
// stop it. It returns nil when the session is already draining.
func (s *Session) StartPollLoop() *PollLoop {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loop == nil && !s.draining {
		s.loop = StartPollLoop(s)
	}
	return s.loop
}

// Drain stops the poll loop, fails any reads still pending, refuses new
// submissions and waits for the device to go idle. The device stays open so
// resources created on it can still be destroyed; Close releases it.
// Draining twice is a no-op and returns the first result.
func (s *Session) Drain() error {
	s.drainOnce.Do(func() {
		s.mu.Lock()
		s.draining = true
		loop := s.loop
		s.mu.Unlock()

		// The loop must observe the stop and exit before the device goes
		// idle and its resources go away.
		if loop != nil {
			s.drainErr = loop.Stop()
		}
		s.failPending(ErrSessionClosed)

		s.life.RLock()
		defer s.life.RUnlock()
		if err := s.device.WaitIdle(); err != nil {
			slogger().Warn("device: wait idle", "err", err)
		}
	})
	return s.drainErr
}

// Close drains the session and destroys the device and instance. Closing
// more than once, including concurrently, destroys them once.
func (s *Session) Close() error {
	err := s.Drain()
	s.closeOnce.Do(func() {
		s.life.Lock()
		defer s.life.Unlock()

		s.mu.Lock()
		s.closed = true
		submitted := s.submitted
		s.mu.Unlock()

		s.device.Destroy()
		s.instance.Destroy()
		slogger().Debug("device: session closed", "submissions", submitted)
	})
	return err
}
