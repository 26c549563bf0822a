package llm

import (
	"context"
	"errors"
	"io"
	"iter"
)

// errStopped is passed to finish hooks when the caller closes a stream
// before it ends. Err still reports nil in that case.
var errStopped = errors.New("stream closed before completion")

// Decoder turns one SSE data payload into a chunk. It reports false for
// payloads that carry nothing for the caller (malformed JSON, keep-alives,
// unrelated event types). A chunk with Done set ends the stream.
type Decoder func(payload []byte) (StreamChunk, bool)

// Stream is a lazy sequence of StreamChunks decoded from a response body.
// Chunks are produced in the order their bytes arrived and the sequence ends
// with exactly one Done chunk, unless it fails or the caller stops early.
// A Stream must be consumed from a single goroutine.
type Stream struct {
	ctx      context.Context
	provider string
	body     io.Reader
	lines    *LineReader
	decode   Decoder

	cur      StreamChunk
	err      error
	chunks   int
	finished bool
	closed   bool
	hooks    []func(chunks int, err error)
}

// NewStream decodes body with decode. Closing the stream closes body when
// it implements io.Closer.
func NewStream(ctx context.Context, provider string, body io.Reader, decode Decoder) *Stream {
	return &Stream{
		ctx:      ctx,
		provider: provider,
		body:     body,
		lines:    NewLineReader(body),
		decode:   decode,
	}
}

// Next advances to the next chunk. It returns false once the Done chunk has
// been delivered, on failure, or after Close.
func (s *Stream) Next() bool {
	if s.finished || s.closed {
		return false
	}
	for {
		if err := contextError(s.ctx); err != nil {
			s.finish(err)
			return false
		}
		line, err := s.lines.ReadLine()
		if err != nil {
			if ctxErr := contextError(s.ctx); ctxErr != nil {
				s.finish(ctxErr)
				return false
			}
			if errors.Is(err, io.EOF) {
				// The vendor closed the body without an explicit end marker.
				s.cur = StreamChunk{Done: true}
				s.finish(nil)
				return true
			}
			s.finish(s.classify(err))
			return false
		}

		payload, ok := DataPayload(line)
		if !ok {
			continue
		}
		chunk, ok := s.decode([]byte(payload))
		if !ok {
			continue
		}
		if chunk.Done {
			s.cur = StreamChunk{Done: true}
			s.finish(nil)
			return true
		}
		s.cur = chunk
		s.chunks++
		return true
	}
}

// Current returns the chunk produced by the last successful Next.
func (s *Stream) Current() StreamChunk { return s.cur }

// Err returns the error that ended the stream, if any. Cancellation is
// reported as ErrCancelled and deadline expiry as ErrTimeout.
func (s *Stream) Err() error { return s.err }

// Provider returns the provider the stream was decoded for.
func (s *Stream) Provider() string { return s.provider }

// Close releases the response body. It is safe to call more than once and
// may be called before the stream is exhausted.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if !s.finished {
		s.finished = true
		s.runHooks(errStopped)
	}
	if c, ok := s.body.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// All adapts the stream to a range-over-func iterator. A failure is yielded
// once as the final pair. The stream is closed when iteration ends.
func (s *Stream) All() iter.Seq2[StreamChunk, error] {
	return func(yield func(StreamChunk, error) bool) {
		defer s.Close()
		for s.Next() {
			if !yield(s.Current(), nil) {
				return
			}
		}
		if err := s.Err(); err != nil {
			yield(StreamChunk{}, err)
		}
	}
}

// onFinish registers fn to run once when the stream ends for any reason.
func (s *Stream) onFinish(fn func(chunks int, err error)) {
	s.hooks = append(s.hooks, fn)
}

func (s *Stream) finish(err error) {
	if s.finished {
		return
	}
	s.finished = true
	s.err = err
	s.runHooks(err)
}

func (s *Stream) runHooks(err error) {
	for _, fn := range s.hooks {
		fn(s.chunks, err)
	}
}

func (s *Stream) classify(err error) error {
	switch {
	case errors.Is(err, ErrCancelled), errors.Is(err, ErrTimeout):
		return err
	case errors.Is(err, context.Canceled):
		return errors.Join(ErrCancelled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return errors.Join(ErrTimeout, err)
	default:
		return &DecodeError{Provider: s.provider, Err: err}
	}
}
