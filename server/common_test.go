package server

import (
	"fmt"
	"log/slog"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gonzalop/vftpd/vfs"
)

func fatalIfErr(t *testing.T, err error, format string, args ...interface{}) {
	t.Helper()
	if err != nil {
		t.Fatalf(format+": %v", append(args, err)...)
	}
}

// firstFlavor makes flavor texts deterministic.
func firstFlavor(choices []string) string { return choices[0] }

type testServer struct {
	srv  *Server
	addr string
	root string
}

// startServer serves a fresh temporary directory on a loopback port.
func startServer(t *testing.T, opts ...Option) *testServer {
	t.Helper()
	root := t.TempDir()
	r, err := vfs.New(vfs.WithBase(root))
	fatalIfErr(t, err, "vfs.New")
	ts := startServerFS(t, NewFileSystem(r), opts...)
	ts.root = root
	return ts
}

func startServerFS(t *testing.T, fs FileSystem, opts ...Option) *testServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	fatalIfErr(t, err, "listen")

	base := []Option{
		WithFileSystem(fs),
		WithLogger(slog.New(slog.DiscardHandler)),
		WithFlavorText(firstFlavor),
	}
	srv, err := NewServer(ln.Addr().String(), append(base, opts...)...)
	fatalIfErr(t, err, "NewServer")

	go func() {
		if err := srv.Serve(ln); err != nil && err != ErrServerClosed {
			t.Logf("Server stopped: %v", err)
		}
	}()
	t.Cleanup(func() { _ = srv.Shutdown() })

	return &testServer{srv: srv, addr: ln.Addr().String()}
}

// rawClient speaks the control protocol directly.
type rawClient struct {
	t    *testing.T
	conn net.Conn
	tp   *textproto.Conn
}

func dialRaw(t *testing.T, addr string) *rawClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	fatalIfErr(t, err, "dial")
	c := &rawClient{t: t, conn: conn, tp: textproto.NewConn(conn)}
	t.Cleanup(func() { c.tp.Close() })

	if code, msg := c.read(); code != 220 {
		t.Fatalf("greeting = %d %s", code, msg)
	}
	return c
}

// rawLogin connects and logs in as the anonymous user.
func rawLogin(t *testing.T, addr string) *rawClient {
	t.Helper()
	c := dialRaw(t, addr)
	c.expect(230, "USER anonymous")
	return c
}

func (c *rawClient) send(format string, args ...any) {
	c.t.Helper()
	_ = c.conn.SetDeadline(time.Now().Add(5 * time.Second))
	fatalIfErr(c.t, c.tp.PrintfLine(format, args...), "send %q", format)
}

func (c *rawClient) read() (int, string) {
	c.t.Helper()
	_ = c.conn.SetDeadline(time.Now().Add(5 * time.Second))
	code, msg, err := c.tp.ReadResponse(0)
	fatalIfErr(c.t, err, "read response")
	return code, msg
}

// cmd sends a command and returns the reply.
func (c *rawClient) cmd(format string, args ...any) (int, string) {
	c.t.Helper()
	c.send(format, args...)
	return c.read()
}

// expect sends a command and fails the test unless the reply has code.
func (c *rawClient) expect(code int, format string, args ...any) string {
	c.t.Helper()
	got, msg := c.cmd(format, args...)
	if got != code {
		c.t.Fatalf("%s: got %d %q, want %d", fmt.Sprintf(format, args...), got, msg, code)
	}
	return msg
}

// pasv enters passive mode and connects to the announced port.
func (c *rawClient) pasv() net.Conn {
	c.t.Helper()
	msg := c.expect(227, "PASV")
	addr, err := parsePasvReply(msg)
	fatalIfErr(c.t, err, "parse PASV reply")
	dc, err := net.DialTimeout("tcp", addr, 5*time.Second)
	fatalIfErr(c.t, err, "dial data")
	_ = dc.SetDeadline(time.Now().Add(5 * time.Second))
	c.t.Cleanup(func() { dc.Close() })
	return dc
}

// parsePasvReply extracts host:port from "Entering Passive Mode (h1,h2,h3,h4,p1,p2)."
func parsePasvReply(msg string) (string, error) {
	start := strings.Index(msg, "(")
	end := strings.LastIndex(msg, ")")
	if start == -1 || end == -1 {
		return "", fmt.Errorf("invalid PASV response: %s", msg)
	}
	parts := strings.Split(msg[start+1:end], ",")
	if len(parts) != 6 {
		return "", fmt.Errorf("invalid PASV parts: %v", parts)
	}
	p1, _ := strconv.Atoi(parts[4])
	p2, _ := strconv.Atoi(parts[5])
	host := strings.Join(parts[:4], ".")
	return net.JoinHostPort(host, strconv.Itoa(p1*256+p2)), nil
}
