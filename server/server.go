// Package server serves FLATELF images over TCP. Every accepted
// connection gets the current state of the source file: by default it is
// re-read and re-converted per connection, so a file that changes on disk
// between connections is reflected without a restart.
package server

import (
	"net"
	"os"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"github.com/flatelf/flatelf"
	"github.com/flatelf/flatelf/metrics"
)

// Options configures a Server.
type Options struct {
	Metrics *metrics.Metrics // may be nil for tests

	// CacheSize enables an opt-in cache of encoded images, keyed by the
	// source file's stat. 0 (the default) disables caching and keeps the
	// read-per-connection behavior.
	CacheSize int

	// ConvertOptions are passed through to flatelf.New.
	ConvertOptions []flatelf.Option
}

type Server struct {
	logger log.Logger
	path   string
	opt    Options

	cache *lru.Cache[cacheKey, []byte]

	mu     sync.Mutex
	ln     net.Listener
	closed bool
}

// Encoded images are keyed by the source file identity, so an updated
// file never serves a stale image.
type cacheKey struct {
	size  int64
	mtime int64
}

// New returns a Server that converts the ELF at path for every
// connection.
func New(logger log.Logger, path string, opt Options) (*Server, error) {
	s := &Server{
		logger: logger,
		path:   path,
		opt:    opt,
	}
	if opt.CacheSize > 0 {
		cache, err := lru.New[cacheKey, []byte](opt.CacheSize)
		if err != nil {
			return nil, err
		}
		s.cache = cache
	}
	return s, nil
}

// ListenAndServe listens on the given TCP address and serves until Close
// is called or the listener fails.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, "listen")
	}
	return s.Serve(ln)
}

// Serve accepts connections from ln, handling each in its own goroutine.
// A failure while processing one connection is reported on that
// connection only.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return errors.New("server closed")
	}
	s.ln = ln
	s.mu.Unlock()

	level.Info(s.logger).Log("msg", "listening", "addr", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				return nil
			}
			return errors.Wrap(err, "accept")
		}
		go s.handle(conn)
	}
}

// Close stops the listener. In-flight connections finish on their own.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.ln != nil {
		return s.ln.Close()
	}
	return nil
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	if s.opt.Metrics != nil {
		s.opt.Metrics.Connections.Inc()
	}

	// The full encoding is computed before the first byte is written, so
	// a failed conversion closes the connection without partial data.
	out, err := s.convert()
	if err != nil {
		level.Error(s.logger).Log("msg", "conversion failed", "peer", conn.RemoteAddr(), "f", s.path, "err", err)
		if s.opt.Metrics != nil {
			s.opt.Metrics.ConversionErrors.WithLabelValues(errorType(err)).Inc()
		}
		return
	}

	level.Info(s.logger).Log("msg", "sending image", "peer", conn.RemoteAddr(), "bytes", len(out))

	n, err := conn.Write(out)
	if s.opt.Metrics != nil {
		s.opt.Metrics.BytesSent.Add(float64(n))
	}
	if err != nil {
		level.Error(s.logger).Log("msg", "write failed", "peer", conn.RemoteAddr(), "err", err)
		return
	}
	if s.opt.Metrics != nil {
		s.opt.Metrics.Conversions.Inc()
	}
}

func (s *Server) convert() ([]byte, error) {
	var key cacheKey
	if s.cache != nil {
		fi, err := os.Stat(s.path)
		if err != nil {
			return nil, errors.Wrap(err, "stat input")
		}
		key = cacheKey{size: fi.Size(), mtime: fi.ModTime().UnixNano()}
		if out, ok := s.cache.Get(key); ok {
			if s.opt.Metrics != nil {
				s.opt.Metrics.CacheHits.Inc()
			}
			return out, nil
		}
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.Wrap(err, "read input")
	}

	img, err := flatelf.New(data, s.opt.ConvertOptions...)
	if err != nil {
		return nil, err
	}

	out := img.Encode()
	if s.cache != nil {
		s.cache.Add(key, out)
	}
	return out, nil
}

func errorType(err error) string {
	switch {
	case errors.Is(err, flatelf.ErrMalformedELF):
		return "MalformedELF"
	case errors.Is(err, flatelf.ErrNoLoadSegments):
		return "NoLoadSegments"
	case errors.Is(err, flatelf.ErrOverlappingSegments):
		return "OverlappingSegments"
	case errors.Is(err, os.ErrNotExist):
		return "ErrNotExist"
	case errors.Is(err, os.ErrPermission):
		return "ErrPermission"
	}
	return "Other"
}
