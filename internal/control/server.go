// Package control implements the Unix socket control plane: a
// newline-delimited JSON server bound to the daemon dispatcher, and the
// client the CLI subcommands use to reach it.
package control

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/wbridge/wbridge/internal/config"
	"github.com/wbridge/wbridge/internal/protocol"
)

// idleTimeout closes connections with no complete request for this long.
const idleTimeout = 10 * time.Second

// DispatchFunc turns one request into a response envelope.
type DispatchFunc func(protocol.Request) protocol.Response

type Server struct {
	socketPath string
	dispatch   DispatchFunc
	listener   net.Listener
	sem        chan struct{} // concurrency limiter for handler goroutines
}

func NewServer(socketPath string, dispatch DispatchFunc) *Server {
	if socketPath == "" {
		socketPath = config.DefaultSocketPath()
	}
	return &Server{
		socketPath: socketPath,
		dispatch:   dispatch,
		sem:        make(chan struct{}, 16),
	}
}

func (s *Server) SocketPath() string {
	return s.socketPath
}

// Listen binds the Unix socket. If a live socket exists, it returns an
// error instead of stealing it; a dead socket file is removed first. If
// not called, Serve calls it automatically.
func (s *Server) Listen() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o700); err != nil {
		return fmt.Errorf("creating socket directory: %w", err)
	}

	if _, err := os.Stat(s.socketPath); err == nil {
		// Socket file exists. Probe whether a daemon is listening.
		conn, dialErr := net.DialTimeout("unix", s.socketPath, 2*time.Second)
		if dialErr == nil {
			conn.Close()
			return fmt.Errorf("another wbridge daemon is already listening on %q", s.socketPath)
		}
		slog.Info("removing stale control socket", "path", s.socketPath)
		_ = os.Remove(s.socketPath)
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %q: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		ln.Close()
		_ = os.Remove(s.socketPath)
		return fmt.Errorf("restricting socket mode: %w", err)
	}
	s.listener = ln
	return nil
}

func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	ln := s.listener
	slog.Info("control socket listening", "path", s.socketPath)

	go func() {
		<-ctx.Done()
		_ = ln.Close()
		_ = os.Remove(s.socketPath)
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				slog.Error("accept error", "error", err)
				continue
			}
		}
		select {
		case s.sem <- struct{}{}:
			go func() {
				defer func() { <-s.sem }()
				s.handleConn(conn)
			}()
		default:
			slog.Warn("too many concurrent connections, rejecting")
			_ = conn.Close()
		}
	}
}

// handleConn serves one client. A connection carries any number of
// newline-delimited requests, answered strictly in order; it closes on
// EOF, on a write failure, or after sitting idle past the deadline. A
// request that is not valid JSON gets an INVALID_ARG envelope and the
// connection stays open.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)

	_ = conn.SetDeadline(time.Now().Add(idleTimeout))
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var resp protocol.Response
		var req protocol.Request
		if err := json.Unmarshal(line, &req); err != nil {
			resp = protocol.Errorf(protocol.CodeInvalidArg, "invalid json: %v", err)
		} else {
			resp = s.dispatch(req)
		}
		if err := writeJSON(conn, resp); err != nil {
			slog.Error("failed to write response", "error", err)
			return
		}
		_ = conn.SetDeadline(time.Now().Add(idleTimeout))
	}
}

func writeJSON(conn net.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = conn.Write(data)
	return err
}
