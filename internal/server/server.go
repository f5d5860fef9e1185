// Package server wires every other package into the running daemon: it
// owns the TCP/UDP listeners for the NFS+Mount programs (port
// 2049) and for the Portmapper (port 111), builds a common.Context per
// call from the shared subsystems, and routes each decoded RPC CALL to
// the right dispatch table.
package server

import (
	"context"
	"crypto/rand"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/jcmturner/gokrb5/v8/keytab"

	"github.com/blburns/simple-nfsd-sub001/internal/auth"
	"github.com/blburns/simple-nfsd-sub001/internal/auth/gss"
	"github.com/blburns/simple-nfsd-sub001/internal/cache"
	"github.com/blburns/simple-nfsd-sub001/internal/config"
	"github.com/blburns/simple-nfsd-sub001/internal/export"
	"github.com/blburns/simple-nfsd-sub001/internal/handle"
	"github.com/blburns/simple-nfsd-sub001/internal/logger"
	"github.com/blburns/simple-nfsd-sub001/internal/metrics"
	"github.com/blburns/simple-nfsd-sub001/internal/mount"
	"github.com/blburns/simple-nfsd-sub001/internal/portmap"
	"github.com/blburns/simple-nfsd-sub001/internal/quota"
	"github.com/blburns/simple-nfsd-sub001/internal/rpc"
	"github.com/blburns/simple-nfsd-sub001/internal/vfs"
)

// portmapCapacity is the default ceiling on registered mappings.
const portmapCapacity = 1000

// Server is the daemon. It owns no state a handler needs beyond what is
// reachable from the shared subsystems below; every RPC call builds its
// own common.Context from them.
type Server struct {
	cfg *config.Config

	fs      *vfs.Local
	handles *handle.Table
	gate    *export.Gate
	authd   *auth.Dispatcher
	attrs   *cache.AttrCache
	content *cache.ContentCache
	quota   *quota.Table
	stats   metrics.NFSMetrics

	portmapRegistry *portmap.Registry
	portmapHandler  *portmap.Handler
	mountRegistry   *mount.Registry
	mountHandler    *mount.Handler

	writeVerifier [8]byte

	nfsTCPListener     *net.TCPListener
	nfsUDPConn         *net.UDPConn
	portmapTCPListener *net.TCPListener
	portmapUDPConn     *net.UDPConn

	connSemaphore chan struct{}

	shutdown      chan struct{}
	shutdownOnce  sync.Once
	wg            sync.WaitGroup
	listenerReady chan struct{}
}

// New builds a Server from cfg and its derived subsystems (export table,
// file-handle table, auth dispatcher, optional caches). It binds no
// sockets; call Serve to start listening.
func New(cfg *config.Config) (*Server, error) {
	exportTable, err := config.BuildExportTable(cfg)
	if err != nil {
		return nil, fmt.Errorf("server: build export table: %w", err)
	}

	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = 1
	}

	authCfg, err := authConfigFrom(cfg)
	if err != nil {
		return nil, fmt.Errorf("server: configure auth: %w", err)
	}

	s := &Server{
		cfg:             cfg,
		fs:              vfs.NewLocal(cfg.RootPath),
		handles:         handle.NewTable(),
		gate:            export.NewGate(exportTable),
		authd:           auth.NewDispatcher(authCfg),
		portmapRegistry: portmap.NewRegistry(portmapCapacity),
		mountRegistry:   mount.NewRegistry(),
		connSemaphore:   make(chan struct{}, maxConns),
		shutdown:        make(chan struct{}),
		listenerReady:   make(chan struct{}),
	}

	if cfg.Cache.Enabled {
		s.attrs = cache.NewAttrCache(cfg.Cache.TTL)
		content, err := cache.OpenContentCache("", cfg.Cache.TTL, cfg.Cache.Size)
		if err != nil {
			return nil, fmt.Errorf("server: open content cache: %w", err)
		}
		s.content = content
	}
	if cfg.QuotaEnabled {
		s.quota = quota.NewTable()
	}
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}
	s.stats = metrics.NewNFSMetrics()

	s.portmapHandler = portmap.NewHandler(s.portmapRegistry)
	s.mountHandler = mount.NewHandler(s.mountRegistry)

	if _, err := rand.Read(s.writeVerifier[:]); err != nil {
		return nil, fmt.Errorf("server: generate write verifier: %w", err)
	}

	return s, nil
}

// authConfigFrom translates the security_mode config list into the auth
// dispatcher's per-flavor toggles, loading cfg.KeytabPath (if set) to wire a
// live RPCSEC_GSS verifier. With security_mode listing krb5/gss but no
// keytab configured, GSSVerify stays nil and every RPCSEC_GSS call is
// rejected with AUTH_ERROR once its credential shape is validated.
func authConfigFrom(cfg *config.Config) (auth.Config, error) {
	ac := auth.Config{AnonUID: cfg.AnonUID, AnonGID: cfg.AnonGID}
	for _, mode := range cfg.SecurityMode {
		switch mode {
		case "none":
			ac.AllowAnonymous = true
		case "sys", "unix":
			ac.AllowSys = true
		case "dh":
			ac.AllowDH = true
		case "krb5", "gss", "krb5i", "krb5p":
			ac.AllowGSS = true
		}
	}

	if ac.AllowGSS && cfg.KeytabPath != "" {
		kt, err := loadKeytab(cfg.KeytabPath)
		if err != nil {
			return auth.Config{}, fmt.Errorf("load keytab %s: %w", cfg.KeytabPath, err)
		}
		ac.GSSVerify = (&gss.Provider{Keytab: kt}).VerifyToken
	}

	return ac, nil
}

// loadKeytab reads and parses a keytab file.
func loadKeytab(path string) (*keytab.Keytab, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keytab file: %w", err)
	}
	kt := keytab.New()
	if err := kt.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("parse keytab: %w", err)
	}
	return kt, nil
}

// Serve binds the NFS (ListenPort, TCP+UDP) and Portmap (PortmapPort,
// TCP+UDP) listeners, registers the bootstrap Portmap mappings
// §4.7 describes, and blocks until ctx is cancelled or Stop is called.
func (s *Server) Serve(ctx context.Context) error {
	nfsAddr := fmt.Sprintf("%s:%d", s.cfg.ListenAddress, s.cfg.ListenPort)
	portmapAddr := fmt.Sprintf("%s:%d", s.cfg.ListenAddress, s.cfg.PortmapPort)

	var err error
	if s.nfsTCPListener, err = listenTCP(nfsAddr); err != nil {
		return err
	}
	if s.nfsUDPConn, err = listenUDP(nfsAddr); err != nil {
		s.closeListeners()
		return err
	}
	if s.portmapTCPListener, err = listenTCP(portmapAddr); err != nil {
		s.closeListeners()
		return err
	}
	if s.portmapUDPConn, err = listenUDP(portmapAddr); err != nil {
		s.closeListeners()
		return err
	}

	s.registerBootstrap()
	close(s.listenerReady)

	logger.Info("simplenfsd listening",
		"nfs_address", nfsAddr,
		"portmap_address", portmapAddr)

	s.wg.Add(4)
	go s.serveTCP(ctx, s.nfsTCPListener, "nfs")
	go s.serveUDP(ctx, s.nfsUDPConn, "nfs")
	go s.serveTCP(ctx, s.portmapTCPListener, "portmap")
	go s.serveUDP(ctx, s.portmapUDPConn, "portmap")

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.shutdown:
		}
	}()

	s.wg.Wait()
	return nil
}

// registerBootstrap records the NFS and Mount program mappings with the
// local Portmapper instance at startup.
func (s *Server) registerBootstrap() {
	port := uint32(s.cfg.ListenPort)
	for _, vers := range []uint32{rpc.NFSVersion2, rpc.NFSVersion3, rpc.NFSVersion4} {
		for _, proto := range []uint32{portmap.ProtoTCP, portmap.ProtoUDP} {
			s.portmapRegistry.Set(portmap.Mapping{Prog: rpc.ProgramNFS, Vers: vers, Prot: proto, Port: port}, "simple-nfsd")
		}
	}
	for _, vers := range []uint32{rpc.MountVersion1, rpc.MountVersion3} {
		for _, proto := range []uint32{portmap.ProtoTCP, portmap.ProtoUDP} {
			s.portmapRegistry.Set(portmap.Mapping{Prog: rpc.ProgramMount, Vers: vers, Prot: proto, Port: port}, "simple-nfsd")
		}
	}
	s.portmapRegistry.RegisterSelf(s.cfg.PortmapPort)
}

// WaitReady returns a channel closed once every listener is bound.
func (s *Server) WaitReady() <-chan struct{} {
	return s.listenerReady
}

// Stop closes every listener and waits for in-flight connection handlers
// and accept loops to return. In-flight requests run to completion; their
// replies are simply discarded if the connection closed underneath them.
func (s *Server) Stop() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)
		s.closeListeners()
	})
	s.wg.Wait()
	if s.content != nil {
		_ = s.content.Close()
	}
}

func (s *Server) closeListeners() {
	if s.nfsTCPListener != nil {
		_ = s.nfsTCPListener.Close()
	}
	if s.nfsUDPConn != nil {
		_ = s.nfsUDPConn.Close()
	}
	if s.portmapTCPListener != nil {
		_ = s.portmapTCPListener.Close()
	}
	if s.portmapUDPConn != nil {
		_ = s.portmapUDPConn.Close()
	}
}

// NFSAddr returns the bound NFS TCP listener address, for tests.
func (s *Server) NFSAddr() string {
	if s.nfsTCPListener == nil {
		return ""
	}
	return s.nfsTCPListener.Addr().String()
}

// PortmapAddr returns the bound Portmap TCP listener address, for tests.
func (s *Server) PortmapAddr() string {
	if s.portmapTCPListener == nil {
		return ""
	}
	return s.portmapTCPListener.Addr().String()
}

func listenTCP(addr string) (*net.TCPListener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("server: resolve TCP %s: %w", addr, err)
	}
	l, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return nil, fmt.Errorf("server: listen TCP %s: %w", addr, err)
	}
	return l, nil
}

func listenUDP(addr string) (*net.UDPConn, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("server: resolve UDP %s: %w", addr, err)
	}
	c, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("server: listen UDP %s: %w", addr, err)
	}
	return c, nil
}
