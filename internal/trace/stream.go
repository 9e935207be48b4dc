package trace

import (
	"io"
	"os"
	"sync"
)

// StreamTracer formats each event as soon as it is emitted.
type StreamTracer struct {
	mu     sync.Mutex
	w      io.Writer
	level  Level
	format Format
}

// NewStreamTracer returns a tracer writing to w.
func NewStreamTracer(w io.Writer, level Level, format Format) *StreamTracer {
	return &StreamTracer{w: w, level: level, format: format}
}

func (s *StreamTracer) Emit(ev *Event) {
	if !s.level.keeps(ev) {
		return
	}
	data := FormatEvent(ev, s.format)
	s.mu.Lock()
	defer s.mu.Unlock()
	// a broken trace sink never fails a generation
	_, _ = s.w.Write(data) //nolint:errcheck
}

func (s *StreamTracer) Flush() error {
	if f, ok := s.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	if f, ok := s.w.(*os.File); ok && !isStdStream(f) {
		return f.Sync()
	}
	return nil
}

// Close flushes and closes the underlying writer unless it is stdout or
// stderr.
func (s *StreamTracer) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}
	if c, ok := s.w.(io.Closer); ok && !isStdStream(s.w) {
		return c.Close()
	}
	return nil
}

func (s *StreamTracer) Level() Level  { return s.level }
func (s *StreamTracer) Enabled() bool { return s.level > LevelOff }

func isStdStream(w io.Writer) bool {
	return w == os.Stderr || w == os.Stdout
}
