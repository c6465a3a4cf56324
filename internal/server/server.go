// Copyright 2026 The termbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package server owns the Unix domain socket the terminal client talks to.
// It accepts connections, reads newline-delimited JSON requests, scrubs
// secrets at the boundary, and forwards each request to the gateway. One
// goroutine per connection; requests on a single connection run in order.
package server

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/termbridge/termbridge/internal/config"
	"github.com/termbridge/termbridge/internal/gateway"
	"github.com/termbridge/termbridge/internal/protocol"
	"github.com/termbridge/termbridge/internal/sanitize"
)

// maxLineBytes caps a single request line. Histories are bounded client-side,
// so anything past this is a broken or hostile client.
const maxLineBytes = 1 << 20 // 1MB

// Server accepts client connections on a Unix socket and dispatches their
// requests to the gateway.
type Server struct {
	cfg *config.Config
	gw  *gateway.Gateway

	listener   net.Listener
	socketPath string
	pidPath    string

	activityMu   sync.Mutex
	lastActivity time.Time

	wg sync.WaitGroup

	idleTimeout time.Duration
	checkEvery  time.Duration
}

// New builds a Server for the given configuration. Call Listen (or Serve,
// which listens on demand) to bind the socket.
func New(cfg *config.Config, gw *gateway.Gateway) *Server {
	s := &Server{
		cfg:          cfg,
		gw:           gw,
		socketPath:   cfg.SocketPath(),
		pidPath:      cfg.PIDPath(),
		lastActivity: time.Now(),
		checkEvery:   time.Minute,
	}
	if m := cfg.Daemon.IdleTimeoutMinutes; m > 0 {
		s.idleTimeout = time.Duration(m) * time.Minute
	}
	return s
}

// SocketPath returns the bound socket location.
func (s *Server) SocketPath() string { return s.socketPath }

// Listen binds the Unix socket and writes the PID file. A stale socket left
// by a crashed daemon is removed first; the live socket is restricted to the
// owning user because requests carry shell history.
func (s *Server) Listen() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o700); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		ln.Close()
		return fmt.Errorf("restrict socket permissions: %w", err)
	}
	s.listener = ln

	if err := os.WriteFile(s.pidPath, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		log.Warnf("server: write pid file: %v", err)
	}
	log.Infof("server: listening on %s", s.socketPath)
	return nil
}

// Serve accepts connections until the context is cancelled or the idle
// timeout fires, then waits for in-flight connections and removes the socket
// and PID files.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Accept blocks with no context of its own; closing the listener is the
	// only way to interrupt it.
	stop := context.AfterFunc(ctx, func() { s.listener.Close() })
	defer stop()

	if s.idleTimeout > 0 {
		s.wg.Add(1)
		go s.watchIdle(ctx, cancel)
	}

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			log.Errorf("server: accept: %v", err)
			continue
		}
		s.wg.Add(1)
		go s.handleConn(ctx, conn)
	}

	cancel()
	s.wg.Wait()
	s.cleanup()
	return nil
}

// handleConn reads one request per line and answers each on the same
// connection. Malformed lines get a bad_request response; the connection
// stays open so one bad message does not cost the client its session.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	// Unblock the pending read when the daemon shuts down.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	connID := uuid.NewString()[:8]
	log.Debugf("server: conn %s opened", connID)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(nil, maxLineBytes)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		s.touch()

		req, err := protocol.ParseRequest(line)
		if err != nil {
			log.Warnf("server: conn %s: %v", connID, err)
			id := gjson.GetBytes(line, "request_id").String()
			resp := protocol.NewErrorResponse(id, protocol.ErrorInfo{
				Kind:    protocol.ErrKindBadRequest,
				Message: err.Error(),
			})
			if werr := s.writeResponse(conn, resp); werr != nil {
				log.Debugf("server: conn %s: write: %v", connID, werr)
				return
			}
			continue
		}

		scrubRequest(req)
		resp := s.gw.Handle(ctx, req)
		if err := s.writeResponse(conn, resp); err != nil {
			log.Debugf("server: conn %s: write: %v", connID, err)
			return
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
		log.Debugf("server: conn %s: read: %v", connID, err)
	}
	log.Debugf("server: conn %s closed", connID)
}

func (s *Server) writeResponse(conn net.Conn, resp protocol.Response) error {
	data, err := protocol.EncodeResponse(resp)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	_, err = conn.Write(data)
	return err
}

// scrubRequest removes secrets from every free-text field that can reach a
// provider. Scrubbing happens once, here, so downstream code never sees the
// raw values. The typed buffer itself is left alone: rewriting what the user
// is typing would corrupt completions.
func scrubRequest(req protocol.Request) {
	switch r := req.(type) {
	case *protocol.CompleteRequest:
		r.History = sanitize.History(r.History)
		r.LastOutput = sanitize.Text(r.LastOutput)
	case *protocol.NLRequest:
		r.History = sanitize.History(r.History)
	case *protocol.ErrorCorrectRequest:
		r.Stderr = sanitize.Text(r.Stderr)
	case *protocol.HistorySearchRequest:
		r.History = sanitize.History(r.History)
	}
}

func (s *Server) touch() {
	s.activityMu.Lock()
	s.lastActivity = time.Now()
	s.activityMu.Unlock()
}

func (s *Server) idleFor() time.Duration {
	s.activityMu.Lock()
	defer s.activityMu.Unlock()
	return time.Since(s.lastActivity)
}

// watchIdle cancels the serve context once idleTimeout passes without a
// request.
func (s *Server) watchIdle(ctx context.Context, cancel context.CancelFunc) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.checkEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if idle := s.idleFor(); idle >= s.idleTimeout {
				log.Infof("server: idle for %s, shutting down", idle.Round(time.Second))
				cancel()
				return
			}
		}
	}
}

func (s *Server) cleanup() {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		log.Warnf("server: remove socket: %v", err)
	}
	if err := os.Remove(s.pidPath); err != nil && !os.IsNotExist(err) {
		log.Warnf("server: remove pid file: %v", err)
	}
	log.Info("server: stopped")
}
