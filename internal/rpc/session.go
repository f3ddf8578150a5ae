package rpc

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Session is one RPC round trip's connection to the coordinator. Sessions
// are per-cycle: Dial, issue calls, Close — no persistent connection is
// assumed (spec.md §4.6).
type Session struct {
	conn net.Conn
}

// DialTimeout bounds how long session bringup may take before giving up.
// A var, not a const, so tests can shrink it rather than wait out the
// production value.
var DialTimeout = 10 * time.Second

// Dial opens a TCP connection to addr, enables TCP_NODELAY, and performs
// the hello handshake that stands in for "obtaining the bootstrap
// capability" (spec.md §4.6; SPEC_FULL.md §4.6).
//
// Bringup (connect + hello) is always bounded by DialTimeout, even if ctx
// itself carries no deadline: context.WithTimeout shortens whichever of
// ctx's existing deadline and DialTimeout comes first, so an unresponsive
// coordinator can never hang Dial indefinitely against the long-lived
// context an agent's main loop typically passes in.
func Dial(ctx context.Context, addr string) (*Session, error) {
	dialCtx, cancel := context.WithTimeout(ctx, DialTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect to coordinator %s: %w", addr, err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(true); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("set TCP_NODELAY: %w", err)
		}
	}

	s := &Session{conn: conn}
	if dl, ok := dialCtx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	if err := s.hello(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("hello handshake with %s: %w", addr, err)
	}

	// Bringup's deadline only covers connect+hello; calls made over the
	// live session fall back to the original ctx's deadline, if any,
	// otherwise the connection has no further deadline.
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	} else {
		_ = conn.SetDeadline(time.Time{})
	}
	return s, nil
}

func (s *Session) hello() error {
	if err := writeFrame(s.conn, methodHello, HelloRequest{ProtocolVersion: ProtocolVersion}); err != nil {
		return fmt.Errorf("send hello: %w", err)
	}
	var resp HelloResponse
	if _, err := readFrame(s.conn, &resp); err != nil {
		return fmt.Errorf("receive hello response: %w", err)
	}
	if !resp.OK {
		return fmt.Errorf("coordinator rejected session")
	}
	return nil
}

// Close tears the session down. Safe to call more than once.
func (s *Session) Close() error {
	return s.conn.Close()
}

// GetScripts issues the get_scripts RPC (spec.md §6 method 1).
func (s *Session) GetScripts(req GetScriptsRequest) (GetScriptsResponse, error) {
	var resp GetScriptsResponse
	if err := s.call(methodGetScripts, req, &resp); err != nil {
		return GetScriptsResponse{}, fmt.Errorf("get_scripts: %w", err)
	}
	return resp, nil
}

// GetJobs issues the get_jobs RPC (spec.md §6 method 2).
func (s *Session) GetJobs(req GetJobsRequest) (GetJobsResponse, error) {
	var resp GetJobsResponse
	if err := s.call(methodGetJobs, req, &resp); err != nil {
		return GetJobsResponse{}, fmt.Errorf("get_jobs: %w", err)
	}
	return resp, nil
}

// SendResults issues the send_results RPC (spec.md §6 method 3).
func (s *Session) SendResults(req SendResultsRequest) (Ack, error) {
	var resp Ack
	if err := s.call(methodSendResults, req, &resp); err != nil {
		return Ack{}, fmt.Errorf("send_results: %w", err)
	}
	return resp, nil
}

func (s *Session) call(m method, req, resp any) error {
	if err := writeFrame(s.conn, m, req); err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	if _, err := readFrame(s.conn, resp); err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	return nil
}
