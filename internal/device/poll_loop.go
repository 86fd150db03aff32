package device

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Poller makes progress on asynchronous GPU work. With wait false a Poll
// call must not block.
type Poller interface {
	Poll(wait bool)
}

// pendingFailer is implemented by pollers that hold waiters which must be
// released when the loop dies.
type pendingFailer interface {
	failPending(err error)
}

// PollLoop repeatedly asks a device for one non-blocking pass of progress,
// yielding the processor between passes, until stopped.
//
// Every asynchronous GPU wait in the process (buffer mapping in particular)
// resolves only while a PollLoop is running over its device. Start the loop
// before issuing such a wait and stop it only after the wait has resolved.
type PollLoop struct {
	running  atomic.Bool
	passes   atomic.Uint64
	group    errgroup.Group
	stopOnce sync.Once
	stopErr  error
}

// StartPollLoop starts polling dev on a new goroutine.
func StartPollLoop(dev Poller) *PollLoop {
	l := &PollLoop{}
	l.running.Store(true)
	l.group.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", ErrPollLoopPanic, r)
				l.running.Store(false)
				slogger().Error("device: poll loop died", "err", err)
				if f, ok := dev.(pendingFailer); ok {
					f.failPending(err)
				}
			}
		}()
		for l.running.Load() {
			dev.Poll(false)
			l.passes.Add(1)
			runtime.Gosched()
		}
		return nil
	})
	slogger().Debug("device: poll loop started")
	return l
}

// Running reports whether the loop is still polling: it has not been told
// to stop and has not died.
func (l *PollLoop) Running() bool { return l.running.Load() }

// Passes returns the number of completed poll passes.
func (l *PollLoop) Passes() uint64 { return l.passes.Load() }

// Stop clears the running flag and waits for the goroutine to exit. It is
// safe to call more than once; later calls return the first result.
func (l *PollLoop) Stop() error {
	l.stopOnce.Do(func() {
		l.running.Store(false)
		l.stopErr = l.group.Wait()
		slogger().Debug("device: poll loop stopped", "passes", l.passes.Load())
	})
	return l.stopErr
}
