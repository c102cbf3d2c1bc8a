package optimizer

import (
	"context"
	"time"
	"unicode/utf8"
)

// Stream releases an already complete text one character at a time with a fixed
// delay between characters. The emission task ends when the text is exhausted, when
// Cancel is called, or when the context passed to Optimize is done.
type Stream struct {
	request Request
	text    string
	chunks  chan string
	done    chan struct{}
	cancel  context.CancelFunc
	err     error
}

func newStream(parent context.Context, req Request, text string, delay time.Duration) *Stream {
	ctx, cancel := context.WithCancel(parent)
	s := &Stream{
		request: req,
		text:    text,
		// Sized to the whole text so emission never waits on a slow reader.
		chunks: make(chan string, utf8.RuneCountInString(text)),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go s.run(ctx, delay)
	return s
}

func (s *Stream) run(ctx context.Context, delay time.Duration) {
	defer close(s.done)
	defer close(s.chunks)
	defer s.cancel()

	var tick <-chan time.Time
	if delay > 0 {
		ticker := time.NewTicker(delay)
		defer ticker.Stop()
		tick = ticker.C
	}

	first := true
	for _, r := range s.text {
		if !first && tick != nil {
			select {
			case <-ctx.Done():
				s.err = ctx.Err()
				return
			case <-tick:
			}
		}
		first = false

		if err := ctx.Err(); err != nil {
			s.err = err
			return
		}
		s.chunks <- string(r)
	}
}

// Chunks yields the characters in order. The channel is closed when the stream
// completes or is cancelled.
func (s *Stream) Chunks() <-chan string {
	return s.chunks
}

// Done is closed once no further characters will be emitted.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Cancel stops further emissions. It is safe to call more than once and after
// completion.
func (s *Stream) Cancel() {
	s.cancel()
}

// Wait blocks until the stream ends. It returns the full text when every character
// was emitted, or the cancellation cause otherwise.
func (s *Stream) Wait() (Result, error) {
	<-s.done
	if s.err != nil {
		return Result{}, s.err
	}
	return Result{Text: s.text}, nil
}

// Request returns the resolved request that produced the stream.
func (s *Stream) Request() Request {
	return s.request
}
