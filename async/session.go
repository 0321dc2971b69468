package async

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/ffibridge/handle"
	"github.com/wippyai/ffibridge/native"
)

// session tracks one future. It is used by a single goroutine at a time: the
// caller, then the drain goroutine if the caller gives up.
type session struct {
	b       *Bridge
	wake    chan int8
	name    string
	fut     native.FutureHandle
	token   handle.Handle
	polls   int
	state   State
	pending bool
	closed  bool
}

func (b *Bridge) open(name string, fut native.FutureHandle) *session {
	wake := make(chan int8, 1)
	s := &session{
		b:     b,
		name:  name,
		fut:   fut,
		wake:  wake,
		token: b.wakers.Insert(wake),
	}
	b.active.Add(1)
	s.set(StateStarted)
	return s
}

func (s *session) set(state State) {
	s.state = state
	if s.b.observer != nil {
		s.b.observer(s.name, state)
	}
}

// wait polls until the future reports ready. A poll whose wake has not
// arrived yet is not repeated, so a drain resumes where the caller stopped.
func (s *session) wait(ctx context.Context, poll native.PollFunc) error {
	if s.state == StateStarted {
		s.set(StateWaiting)
	}
	for {
		if !s.pending {
			s.polls++
			s.pending = true
			if err := poll(ctx, s.fut, s.b.continuation, uint64(s.token)); err != nil {
				s.pending = false
				return err
			}
		}
		select {
		case r := <-s.wake:
			s.pending = false
			if r == native.PollReady {
				s.unregister()
				s.set(StateReady)
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *session) unregister() {
	if _, err := s.b.wakers.Remove(s.token); err != nil {
		s.b.logger.Debug("session waker already removed", zap.String("fn", s.name), zap.Error(err))
	}
}

// close frees the future. It runs exactly once per session.
func (s *session) close(ctx context.Context, free native.FreeFunc) {
	if s.closed {
		return
	}
	s.closed = true
	if s.state != StateReady && s.state != StateCompleted {
		s.unregister()
	}
	if err := free(context.WithoutCancel(ctx), s.fut); err != nil {
		s.b.logger.Warn("free future", zap.String("fn", s.name), zap.Uint64("future", uint64(s.fut)), zap.Error(err))
	}
	s.b.active.Add(-1)
	s.b.sessions.Done()
}
