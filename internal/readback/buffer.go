package readback

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Buffer errors.
var (
	// ErrBufferDestroyed is returned when operating on a destroyed buffer.
	ErrBufferDestroyed = errors.New("readback: buffer has been destroyed")

	// ErrBufferAlreadyMapped is returned when mapping a buffer that is mapped or pending.
	ErrBufferAlreadyMapped = errors.New("readback: buffer is already mapped or mapping is pending")

	// ErrBufferNotMapped is returned when reading an unmapped buffer.
	ErrBufferNotMapped = errors.New("readback: buffer is not mapped")

	// ErrBufferMapPending is returned when reading a buffer whose mapping has not resolved.
	ErrBufferMapPending = errors.New("readback: buffer mapping is pending")

	// ErrInvalidMapRange is returned when the map range is out of bounds.
	ErrInvalidMapRange = errors.New("readback: map range out of bounds")

	// ErrMapUsageMismatch is returned when the buffer lacks MapRead usage.
	ErrMapUsageMismatch = errors.New("readback: buffer does not have MapRead usage")

	// ErrMappingFailed is returned when an asynchronous mapping resolves with a failure status.
	ErrMappingFailed = errors.New("readback: buffer mapping failed")

	// ErrCallbackNil is returned when MapAsync is called with a nil callback.
	ErrCallbackNil = errors.New("readback: map callback is nil")
)

// MapState is the mapping state of a Buffer.
type MapState int

const (
	// MapStateUnmapped means the buffer is not mapped.
	MapStateUnmapped MapState = iota
	// MapStatePending means a map request waits for the poll loop.
	MapStatePending
	// MapStateMapped means the host copy is available.
	MapStateMapped
)

// String returns the string representation of MapState.
func (s MapState) String() string {
	switch s {
	case MapStateUnmapped:
		return "Unmapped"
	case MapStatePending:
		return "Pending"
	case MapStateMapped:
		return "Mapped"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// MapStatus is the result of an asynchronous map request.
type MapStatus int

const (
	// MapStatusSuccess indicates mapping completed successfully.
	MapStatusSuccess MapStatus = iota
	// MapStatusError indicates the device failed to read the buffer back.
	MapStatusError
	// MapStatusDestroyedBeforeCallback indicates the buffer was destroyed while pending.
	MapStatusDestroyedBeforeCallback
	// MapStatusUnmappedBeforeCallback indicates the buffer was unmapped while pending.
	MapStatusUnmappedBeforeCallback
)

// String returns the string representation of MapStatus.
func (s MapStatus) String() string {
	switch s {
	case MapStatusSuccess:
		return "Success"
	case MapStatusError:
		return "Error"
	case MapStatusDestroyedBeforeCallback:
		return "DestroyedBeforeCallback"
	case MapStatusUnmappedBeforeCallback:
		return "UnmappedBeforeCallback"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Mapper resolves map requests. The device session implements it: a request
// waits for every submission made before it, and done is invoked from the
// poll loop once dst holds the buffer contents (or the read failed).
//
// cancel withdraws a request. After it returns the mapper no longer touches
// buf and will not call done.
type Mapper interface {
	MapBuffer(buf hal.Buffer, offset uint64, dst []byte, done func(error)) (cancel func())
}

// Buffer is a host-readable GPU buffer with an asynchronous map state machine.
//
// Lifecycle:
//  1. Create with NewBuffer
//  2. Call MapAsync once the copy into the buffer has been submitted
//  3. Keep the poll loop running until the callback fires
//  4. Read with MappedRange
//  5. Unmap exactly once
//  6. Destroy when the buffer is no longer needed
//
// Buffer is safe for concurrent use. Callbacks are invoked outside the lock.
type Buffer struct {
	mu sync.RWMutex

	raw    hal.Buffer
	device hal.Device
	mapper Mapper
	label  string
	size   uint64
	usage  gputypes.BufferUsage

	state      MapState
	mapOffset  uint64
	mapSize    uint64
	mappedData []byte
	callback   func(MapStatus)
	cancel     func()
	mapErr     error
	generation uint64
	destroyed  bool
}

// NewBuffer creates a readback buffer of size bytes with MapRead|CopyDst usage.
func NewBuffer(device hal.Device, mapper Mapper, label string, size uint64) (*Buffer, error) {
	if device == nil {
		return nil, errors.New("readback: device is nil")
	}
	if mapper == nil {
		return nil, errors.New("readback: mapper is nil")
	}
	if size == 0 {
		return nil, fmt.Errorf("readback: invalid buffer size 0")
	}
	usage := gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst
	raw, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create readback buffer: %w", err)
	}
	slogger().Debug("readback: buffer created", "label", label, "size", size)
	return &Buffer{
		raw:    raw,
		device: device,
		mapper: mapper,
		label:  label,
		size:   size,
		usage:  usage,
	}, nil
}

// Label returns the buffer's debug label.
func (b *Buffer) Label() string { return b.label }

// Size returns the buffer size in bytes.
func (b *Buffer) Size() uint64 { return b.size }

// Raw returns the underlying buffer handle, or nil after Destroy.
func (b *Buffer) Raw() hal.Buffer {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.destroyed {
		return nil
	}
	return b.raw
}

// MapState returns the current mapping state.
func (b *Buffer) MapState() MapState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// MapAsync requests read access to [offset, offset+size).
//
// The request resolves only while the poll loop is running; callback is
// invoked from the poll goroutine with the final status. A returned error
// means nothing was scheduled and callback will not be called.
func (b *Buffer) MapAsync(offset, size uint64, callback func(MapStatus)) error {
	if callback == nil {
		return ErrCallbackNil
	}

	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return ErrBufferDestroyed
	}
	if b.state != MapStateUnmapped {
		b.mu.Unlock()
		return ErrBufferAlreadyMapped
	}
	if !b.usage.Contains(gputypes.BufferUsageMapRead) {
		b.mu.Unlock()
		return ErrMapUsageMismatch
	}
	if offset > b.size || size > b.size-offset {
		b.mu.Unlock()
		return fmt.Errorf("%w: offset %d + size %d > buffer size %d", ErrInvalidMapRange, offset, size, b.size)
	}

	b.state = MapStatePending
	b.mapOffset = offset
	b.mapSize = size
	b.mapErr = nil
	b.callback = callback
	b.generation++
	gen := b.generation
	dst := make([]byte, size)
	raw := b.raw
	b.mu.Unlock()

	cancel := b.mapper.MapBuffer(raw, offset, dst, func(err error) {
		b.resolve(gen, dst, err)
	})

	b.mu.Lock()
	stale := b.generation != gen
	if !stale && b.state == MapStatePending {
		b.cancel = cancel
	}
	b.mu.Unlock()
	// Unmapped or destroyed while the request was being scheduled.
	if stale && cancel != nil {
		cancel()
	}
	return nil
}

// resolve completes the map request identified by gen. Stale completions
// (after Unmap or Destroy) are dropped.
func (b *Buffer) resolve(gen uint64, data []byte, err error) {
	b.mu.Lock()
	if b.generation != gen || b.state != MapStatePending {
		b.mu.Unlock()
		return
	}
	callback := b.callback
	b.callback = nil
	b.cancel = nil
	status := MapStatusSuccess
	if err != nil {
		b.state = MapStateUnmapped
		b.mapErr = err
		status = MapStatusError
	} else {
		b.state = MapStateMapped
		b.mappedData = data
	}
	b.mu.Unlock()

	if err != nil {
		slogger().Warn("readback: map failed", "label", b.label, "error", err)
	}
	if callback != nil {
		callback(status)
	}
}

// MapError returns the error that caused the last map request to fail.
func (b *Buffer) MapError() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.mapErr
}

// MappedRange returns size bytes of the mapped data starting at offset.
// Offsets are relative to the buffer, not the mapped range. The slice is
// invalid after Unmap.
func (b *Buffer) MappedRange(offset, size uint64) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.destroyed {
		return nil, ErrBufferDestroyed
	}
	if b.state == MapStatePending {
		return nil, ErrBufferMapPending
	}
	if b.state != MapStateMapped {
		return nil, ErrBufferNotMapped
	}
	if offset < b.mapOffset || size > b.mapSize || offset-b.mapOffset > b.mapSize-size {
		return nil, fmt.Errorf("%w: [%d, %d) outside mapped [%d, %d)",
			ErrInvalidMapRange, offset, offset+size, b.mapOffset, b.mapOffset+b.mapSize)
	}
	rel := offset - b.mapOffset
	return b.mappedData[rel : rel+size], nil
}

// Unmap releases the host mapping. A pending request is cancelled and its
// callback receives MapStatusUnmappedBeforeCallback. Unmapping an unmapped
// buffer is a no-op.
func (b *Buffer) Unmap() error {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return ErrBufferDestroyed
	}

	var callback func(MapStatus)
	if b.state == MapStatePending {
		callback = b.callback
	}
	cancel := b.cancel
	b.state = MapStateUnmapped
	b.mappedData = nil
	b.callback = nil
	b.cancel = nil
	b.generation++
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if callback != nil {
		callback(MapStatusUnmappedBeforeCallback)
	}
	return nil
}

// Destroy releases the GPU buffer. A pending request receives
// MapStatusDestroyedBeforeCallback. Destroy is idempotent.
func (b *Buffer) Destroy() {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	b.destroyed = true
	var callback func(MapStatus)
	if b.state == MapStatePending {
		callback = b.callback
	}
	cancel := b.cancel
	raw := b.raw
	b.raw = nil
	b.mappedData = nil
	b.callback = nil
	b.cancel = nil
	b.state = MapStateUnmapped
	b.generation++
	b.mu.Unlock()

	// The pending read must be withdrawn before the buffer is destroyed.
	if cancel != nil {
		cancel()
	}
	if callback != nil {
		callback(MapStatusDestroyedBeforeCallback)
	}
	if raw != nil {
		b.device.DestroyBuffer(raw)
	}
}
