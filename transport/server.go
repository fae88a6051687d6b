package transport

import (
	"net"
	"os"
	"strings"

	"github.com/teris-io/shortid"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/wayland-transpositor/wprs/cmn"
	"github.com/wayland-transpositor/wprs/proto"
)

// Listener accepts viewer connections on a unix socket in the per-user
// runtime directory. One client is served at a time; a new connection
// supersedes nothing — callers accept the next client only after the
// previous endpoint is done.
type Listener struct {
	lg    *zap.Logger
	ln    net.Listener
	extra Extra
	path  string
}

// Listen binds the server socket, replacing a stale socket file left behind
// by a previous instance.
func Listen(path string, extra Extra) (*Listener, error) {
	lg := extra.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	ln, err := net.Listen("unix", path)
	if err != nil && strings.Contains(err.Error(), "address already in use") {
		if probe, perr := net.Dial("unix", path); perr == nil {
			probe.Close()
			return nil, cmn.WrapErr(cmn.Transport, err, "socket %s is live", path)
		}
		lg.Info("removing stale socket", zap.String("path", path))
		if rerr := os.Remove(path); rerr != nil {
			return nil, cmn.WrapErr(cmn.Transport, rerr, "remove stale socket %s", path)
		}
		ln, err = net.Listen("unix", path)
	}
	if err != nil {
		return nil, cmn.WrapErr(cmn.Transport, err, "listen %s", path)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		ln.Close()
		return nil, cmn.WrapErr(cmn.Transport, err, "chmod %s", path)
	}
	return &Listener{lg: lg, ln: ln, extra: extra, path: path}, nil
}

// Accept blocks for the next viewer connection, verifies the peer runs as
// the same user, and returns a server endpoint plus a fresh client ID.
func (l *Listener) Accept() (*Endpoint, proto.ClientID, error) {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			return nil, "", cmn.WrapErr(cmn.Transport, err, "accept on %s", l.path)
		}
		if err := checkPeer(conn); err != nil {
			l.lg.Warn("rejecting peer", zap.Error(err))
			conn.Close()
			continue
		}
		id, err := shortid.Generate()
		if err != nil {
			conn.Close()
			return nil, "", cmn.WrapErr(cmn.Transport, err, "generate client id")
		}
		ep := &Endpoint{}
		ep.init(l.extra, nil)
		go ep.runServer(conn)
		l.lg.Info("client connected", zap.String("client", id))
		return ep, proto.ClientID(id), nil
	}
}

// Close shuts the listener down and removes the socket file.
func (l *Listener) Close() {
	l.ln.Close()
	os.Remove(l.path)
}

// Serve wraps an already-established connection (tests, tunneled setups) in
// a server endpoint.
func Serve(conn net.Conn, extra Extra) *Endpoint {
	ep := &Endpoint{}
	ep.init(extra, nil)
	go ep.runServer(conn)
	return ep
}

func (ep *Endpoint) runServer(conn net.Conn) {
	defer close(ep.doneCh)
	defer close(ep.recvCh)

	err := ep.session(conn)
	reason := reasonStopped
	if err != nil {
		reason = reasonError
	}
	ep.terminate(err, reason)
}

// checkPeer rejects connections from other users. The socket mode already
// restricts access; this guards against permissive umasks on the runtime
// directory.
func checkPeer(conn net.Conn) error {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return nil
	}
	raw, err := uc.SyscallConn()
	if err != nil {
		return cmn.WrapErr(cmn.Transport, err, "peer syscall conn")
	}
	var (
		cred *unix.Ucred
		cerr error
	)
	if err := raw.Control(func(fd uintptr) {
		cred, cerr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil {
		return cmn.WrapErr(cmn.Transport, err, "peer credentials")
	}
	if cerr != nil {
		return cmn.WrapErr(cmn.Transport, cerr, "peer credentials")
	}
	if cred.Uid != uint32(os.Getuid()) {
		return cmn.NewErr(cmn.Transport, "peer uid %d != %d", cred.Uid, os.Getuid())
	}
	return nil
}
