// Package dispatch implements the per-connection Fast request loop:
// decode, claim a pooled connection, dispatch to the matching operation,
// encode the reply, release. It owns the TCP listener lifecycle the way
// a long-lived network server does: a mutex-guarded running flag, a
// refusal to double-Start, and a clean Stop that closes the listener and
// waits for in-flight connections to notice.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/cuemby/bucketsmdapi/pkg/fast"
	"github.com/cuemby/bucketsmdapi/pkg/log"
	"github.com/cuemby/bucketsmdapi/pkg/mdapierror"
	"github.com/cuemby/bucketsmdapi/pkg/metrics"
	"github.com/cuemby/bucketsmdapi/pkg/pg"
)

// Server is the Fast protocol server: one TCP listener, one goroutine
// per accepted connection, all connections sharing pool.
type Server struct {
	pool         pg.Pool
	claimTimeout time.Duration

	mu       sync.RWMutex
	running  bool
	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer builds a Server that claims connections from pool, bounding
// each claim to claimTimeout.
func NewServer(pool pg.Pool, claimTimeout time.Duration) *Server {
	return &Server{pool: pool, claimTimeout: claimTimeout}
}

// Start binds addr and begins accepting connections. It returns once the
// listener is bound; the accept loop runs in its own goroutine.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("dispatch: server already running")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("dispatch: listen %s: %w", addr, err)
	}
	s.listener = ln
	s.running = true
	s.mu.Unlock()

	log.Logger.Info().
		Str("component", "dispatch").
		Str("address", addr).
		Msg("starting fast server")

	go s.acceptLoop(ctx)
	return nil
}

// Stop closes the listener, which ends the accept loop, then waits for
// every connection loop to exit. It does not close accepted connections:
// a loop exits on a read error or when its context is cancelled, and the
// context is checked only between requests. Safe to call more than once.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	ln := s.listener
	s.mu.Unlock()

	log.Logger.Info().Str("component", "dispatch").Msg("stopping fast server")

	var err error
	if ln != nil {
		err = ln.Close()
	}
	s.wg.Wait()

	log.Logger.Info().Str("component", "dispatch").Msg("fast server stopped")
	return err
}

// IsRunning reports whether the accept loop is active.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.IsRunning() {
				return
			}
			log.Logger.Error().Err(err).Str("component", "dispatch").Msg("accept failed")
			return
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer conn.Close()
			s.serveConn(ctx, conn)
		}()
	}
}

// serveConn runs the request loop for one connection until a read error,
// an unknown method, or the server stopping ends it.
func (s *Server) serveConn(ctx context.Context, nc net.Conn) {
	connLog := log.WithComponent("dispatch")
	for {
		if ctx.Err() != nil {
			return
		}

		msg, err := fast.Decode(nc)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				connLog.Debug().Err(err).Msg("connection read ended")
			}
			return
		}
		metrics.IncomingRequestCount.Inc()

		reply, closeSession := s.handle(ctx, msg)
		if closeSession {
			connLog.Error().Str("method", msg.Method).Msg("unknown method, closing session")
			return
		}

		for _, rm := range reply {
			if err := fast.Encode(nc, rm); err != nil {
				connLog.Error().Err(err).Msg("failed to write reply")
				return
			}
		}
		if err := fast.Encode(nc, fast.End(msg.ID, msg.Method)); err != nil {
			connLog.Error().Err(err).Msg("failed to write end-of-reply frame")
			return
		}
	}
}

// handle claims a connection, runs the matching handler, and renders its
// result (or error) as the reply's data frames, one per Reply element —
// zero, one, or many, per SPEC_FULL.md §9. The caller writes these and
// then the terminal fast.End frame. The returned bool is true only for
// unknown methods, which the caller must treat as fatal to the session.
func (s *Server) handle(ctx context.Context, m fast.Message) ([]fast.Message, bool) {
	timer := metrics.NewTimer()

	h, ok := handlers[m.Method]
	if !ok {
		return nil, true
	}

	reqLog := log.WithMethod(log.WithComponent("dispatch"), m.Method)
	if rid, ok := fast.PeekField(m, "request_id"); ok {
		reqLog = log.WithRequestID(reqLog, rid)
	}

	conn, err := pg.Claim(ctx, s.pool, s.claimTimeout)
	if err != nil {
		timer.ObserveDurationVec(metrics.FastRequests, m.Method, metrics.Success(false))
		reqLog.Error().Err(err).Msg("failed to claim connection")
		return []fast.Message{errorReply(m, mdapierror.Postgres(fmt.Sprintf("failed to claim connection: %s", err)))}, false
	}
	defer conn.Release()

	result, err := h(ctx, conn, m)
	timer.ObserveDurationVec(metrics.FastRequests, m.Method, metrics.Success(err == nil))
	if err != nil {
		if me, ok := err.(*mdapierror.Error); ok && me.Kind == mdapierror.KindPostgresError {
			reqLog.Error().Err(err).Msg("postgres request failed")
		} else {
			reqLog.Debug().Err(err).Msg("operation failed")
		}
		return []fast.Message{errorReply(m, err)}, false
	}

	msgs, err := toReply(result).messages(m.ID, m.Method)
	if err != nil {
		reqLog.Error().Err(err).Msg("failed to render reply")
		return []fast.Message{errorReply(m, mdapierror.Postgres(err.Error()))}, false
	}
	return msgs, false
}

// errorReply renders err as the canonical {"error":{"name","message"}}
// payload. A non-mdapierror error (which should not occur; every
// operation returns *mdapierror.Error) is wrapped as a PostgresError so
// the session still gets a well-formed reply instead of closing.
func errorReply(m fast.Message, err error) fast.Message {
	me, ok := err.(*mdapierror.Error)
	if !ok {
		me = mdapierror.Postgres(err.Error())
	}
	reply, wrapErr := fast.Wrap(m.ID, m.Method, me.ToFast())
	if wrapErr != nil {
		// me.ToFast() is a fixed, already-marshaled JSON value; wrapping
		// it in a one-element array cannot itself fail.
		panic(wrapErr)
	}
	return reply
}
