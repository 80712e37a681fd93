package reactor

import (
	"io"
	"sync"
)

// Stream wraps a byte source and sink. Reads happen on a background
// goroutine and are delivered on the loop goroutine; writes are performed
// in submission order off the loop goroutine.
type Stream struct {
	loop *Loop
	r    io.Reader
	w    io.Writer

	// loop goroutine only
	onRead  func([]byte, error)
	reading bool
	started bool
	closed  bool
	backlog []chunk

	wmu     sync.Mutex
	wqueue  []writeReq
	wsignal chan struct{}
	wonce   sync.Once
}

type chunk struct {
	data []byte
	err  error
}

type writeReq struct {
	p  []byte
	cb func(error)
}

// NewStream creates a stream over r and w. Either may be nil if the stream
// is only used in one direction.
func (l *Loop) NewStream(r io.Reader, w io.Writer) *Stream {
	return &Stream{
		loop:    l,
		r:       r,
		w:       w,
		wsignal: make(chan struct{}, 1),
	}
}

// ReadStart begins delivering reads to cb. Data that arrived while the
// stream was stopped is delivered first, in order. A reading stream keeps
// the loop alive.
//
// cb receives each chunk of data; a non-nil error ends the stream and is
// delivered exactly once, possibly alongside final data.
func (s *Stream) ReadStart(cb func(data []byte, err error)) {
	s.onRead = cb
	if s.reading || s.closed {
		return
	}
	s.reading = true
	s.loop.active++
	if !s.started {
		s.started = true
		go s.readLoop()
	}
	if len(s.backlog) > 0 {
		backlog := s.backlog
		s.backlog = nil
		s.loop.later(func() {
			for i, c := range backlog {
				if !s.reading {
					s.backlog = append(backlog[i:], s.backlog...)
					return
				}
				s.onRead(c.data, c.err)
			}
		})
	}
}

// ReadStop stops delivering reads. Data that keeps arriving is retained
// until the next ReadStart. Stopping a stopped stream does nothing.
func (s *Stream) ReadStop() {
	if !s.reading {
		return
	}
	s.reading = false
	s.loop.active--
}

// Reading reports whether reads are being delivered.
func (s *Stream) Reading() bool { return s.reading }

func (s *Stream) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := s.r.Read(buf)
		if n > 0 || err != nil {
			var data []byte
			if n > 0 {
				data = make([]byte, n)
				copy(data, buf[:n])
			}
			s.loop.Post(func() { s.deliver(chunk{data: data, err: err}) })
		}
		if err != nil {
			return
		}
	}
}

func (s *Stream) deliver(c chunk) {
	switch {
	case s.closed:
	case s.reading:
		s.onRead(c.data, c.err)
	default:
		s.backlog = append(s.backlog, c)
	}
}

// Write queues p to be written after every previously queued write. cb, if
// non-nil, runs on the loop goroutine with the write's result. The loop
// stays alive until cb has run.
func (s *Stream) Write(p []byte, cb func(error)) {
	s.loop.pending++
	s.wmu.Lock()
	s.wqueue = append(s.wqueue, writeReq{p: p, cb: cb})
	s.wmu.Unlock()
	s.wonce.Do(func() { go s.writeLoop() })
	select {
	case s.wsignal <- struct{}{}:
	default:
	}
}

func (s *Stream) writeLoop() {
	for {
		select {
		case <-s.wsignal:
		case <-s.loop.done:
			return
		}
		for {
			s.wmu.Lock()
			queue := s.wqueue
			s.wqueue = nil
			s.wmu.Unlock()
			if len(queue) == 0 {
				break
			}
			for _, req := range queue {
				var err error
				if s.w == nil {
					err = io.ErrClosedPipe
				} else {
					_, err = s.w.Write(req.p)
				}
				cb := req.cb
				s.loop.Post(func() {
					s.loop.pending--
					if cb != nil {
						cb(err)
					}
				})
			}
		}
	}
}

// Close stops reading for good and cancels the underlying reader if it
// supports cancellation (see github.com/muesli/cancelreader).
func (s *Stream) Close() {
	s.ReadStop()
	if s.closed {
		return
	}
	s.closed = true
	s.backlog = nil
	if c, ok := s.r.(interface{ Cancel() bool }); ok {
		c.Cancel()
	}
}
