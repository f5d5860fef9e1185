package server

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/blburns/simple-nfsd-sub001/internal/logger"
	"github.com/blburns/simple-nfsd-sub001/internal/rpc"
)

// idleTimeout is the per-connection read/write deadline
// (default 30s of no activity closes the connection).
func (s *Server) idleTimeout() time.Duration {
	if s.cfg.IdleTimeout > 0 {
		return s.cfg.IdleTimeout
	}
	return 30 * time.Second
}

// serveTCP runs the accept loop for one TCP listener, handing each
// connection to its own goroutine bounded by the connection semaphore.
func (s *Server) serveTCP(ctx context.Context, l *net.TCPListener, label string) {
	defer s.wg.Done()

	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return
			default:
				logger.Debug("accept error", "listener", label, "error", err)
				return
			}
		}

		select {
		case s.connSemaphore <- struct{}{}:
		default:
			logger.Debug("connection limit reached, rejecting", "listener", label, "client", conn.RemoteAddr())
			_ = conn.Close()
			continue
		}

		if s.stats != nil {
			s.stats.RecordConnectionAccepted("tcp")
		}

		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			defer func() { <-s.connSemaphore }()
			defer func() {
				if s.stats != nil {
					s.stats.RecordConnectionClosed("tcp")
				}
			}()
			s.handleTCPConn(ctx, c)
		}(conn)
	}
}

// handleTCPConn serves RPC calls off one TCP connection until the peer
// disconnects, a framing error occurs, or the connection sits idle past
// idleTimeout. Replies are record-marked the same as requests.
func (s *Server) handleTCPConn(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()

	clientAddr := conn.RemoteAddr().String()
	clientIP, clientPort := splitHostPort(clientAddr)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		default:
		}

		if err := conn.SetDeadline(time.Now().Add(s.idleTimeout())); err != nil {
			return
		}

		record, err := rpc.ReadStreamRecord(conn)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return
			}
			if !errors.Is(err, io.EOF) {
				logger.Debug("read RPC record error", "client", clientAddr, "error", err)
			}
			return
		}

		reply := s.handleMessage(record, clientIP, clientPort)
		if reply == nil {
			continue
		}
		if err := rpc.WriteStreamRecord(conn, reply); err != nil {
			logger.Debug("write RPC reply error", "client", clientAddr, "error", err)
			return
		}
	}
}

// serveUDP reads datagrams off one UDP socket. Each datagram is a
// complete, unframed RPC message (no record marking); the read deadline
// is refreshed each iteration purely to notice shutdown promptly.
func (s *Server) serveUDP(_ context.Context, conn *net.UDPConn, label string) {
	defer s.wg.Done()

	buf := make([]byte, rpc.MaxDatagramSize)
	for {
		select {
		case <-s.shutdown:
			return
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond)); err != nil {
			select {
			case <-s.shutdown:
				return
			default:
				continue
			}
		}

		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			select {
			case <-s.shutdown:
				return
			default:
				logger.Debug("UDP read error", "listener", label, "error", err)
				continue
			}
		}

		if err := rpc.ValidateDatagram(n); err != nil {
			logger.Debug("UDP datagram rejected", "listener", label, "client", addr, "error", err)
			continue
		}

		msg := make([]byte, n)
		copy(msg, buf[:n])

		reply := s.handleMessage(msg, addr.IP, addr.Port)
		if reply == nil {
			continue
		}
		if _, err := conn.WriteToUDP(reply, addr); err != nil {
			logger.Debug("write UDP reply error", "listener", label, "client", addr, "error", err)
		}
	}
}

func splitHostPort(addr string) (net.IP, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, 0
	}
	port := 0
	for _, c := range portStr {
		if c < '0' || c > '9' {
			port = 0
			break
		}
		port = port*10 + int(c-'0')
	}
	return net.ParseIP(host), port
}
