package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

var errBadHostPort = errors.New("malformed host-port")

// parseHostPort parses the h1,h2,h3,h4,p1,p2 argument of PORT.
func parseHostPort(arg string) (*net.TCPAddr, error) {
	parts := strings.Split(strings.TrimSpace(arg), ",")
	if len(parts) != 6 {
		return nil, errBadHostPort
	}
	var b [6]byte
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
		if err != nil {
			return nil, errBadHostPort
		}
		b[i] = byte(v)
	}
	return &net.TCPAddr{
		IP:   net.IPv4(b[0], b[1], b[2], b[3]),
		Port: int(b[4])<<8 | int(b[5]),
	}, nil
}

// formatHostPort renders an IPv4 address and port as h1,h2,h3,h4,p1,p2.
func formatHostPort(ip net.IP, port int) string {
	v4 := ip.To4()
	return fmt.Sprintf("%d,%d,%d,%d,%d,%d", v4[0], v4[1], v4[2], v4[3], port>>8, port&0xFF)
}

// addrIP extracts the IP of a network address.
func addrIP(a net.Addr) net.IP {
	if tcp, ok := a.(*net.TCPAddr); ok {
		return tcp.IP
	}
	host, _, err := net.SplitHostPort(a.String())
	if err != nil {
		return nil
	}
	return net.ParseIP(host)
}

func (s *session) handlePORT(arg string) {
	addr, err := parseHostPort(arg)
	if err != nil {
		s.reply(500, "Illegal PORT command.")
		return
	}

	// The target must be the client itself; this prevents FTP bounce attacks.
	peerIP := addrIP(s.peer)
	if peerIP == nil || !addr.IP.Equal(peerIP) {
		s.server.logger.Warn("port_rejected",
			"session_id", s.id,
			"remote_ip", s.remoteIP,
			"target", addr.String(),
		)
		s.reply(500, "Illegal PORT command.")
		return
	}

	s.closePassive()
	s.activeAddr = addr
	s.replyOK(200)
}

func (s *session) handlePASV(_ string) {
	s.activeAddr = nil
	s.closePassive()

	localIP := addrIP(s.conn.LocalAddr())
	if localIP == nil {
		s.reply(500, "Cannot determine local address.")
		return
	}

	advertised := localIP
	if s.server.publicHost != "" {
		ip, err := resolveIPv4(s.server.publicHost)
		if err != nil {
			s.reply(500, "Cannot resolve public host: "+err.Error())
			return
		}
		advertised = ip
	}
	if advertised.To4() == nil {
		s.reply(500, "Passive mode requires an IPv4 address.")
		return
	}

	ln, err := s.listenPassive(localIP)
	if err != nil {
		s.reply(500, "Cannot open passive connection: "+err.Error())
		return
	}

	s.mu.Lock()
	s.pasvListener = ln
	s.mu.Unlock()

	port := ln.Addr().(*net.TCPAddr).Port
	s.reply(227, "Entering Passive Mode ("+formatHostPort(advertised, port)+").")
}

func resolveIPv4(host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}
	ips, err := net.LookupIP(host)
	if err != nil {
		return nil, err
	}
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}
	}
	return nil, fmt.Errorf("no IPv4 address for %s", host)
}

// listenPassive binds a listener on ip, inside the configured port range
// if there is one.
func (s *session) listenPassive(ip net.IP) (net.Listener, error) {
	host := ip.String()
	minPort, maxPort := s.server.pasvMinPort, s.server.pasvMaxPort
	if minPort > 0 && maxPort >= minPort {
		rangeLen := int32(maxPort - minPort + 1)

		// Get a starting offset using round-robin
		startOffset := s.server.nextPassivePort.Add(1)

		for i := int32(0); i < rangeLen; i++ {
			offset := (startOffset + i) % rangeLen
			port := minPort + int(offset)

			ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
			if err == nil {
				return ln, nil
			}
		}
		return nil, fmt.Errorf("no available ports in range [%d, %d]", minPort, maxPort)
	}
	return net.Listen("tcp", net.JoinHostPort(host, "0"))
}

func (s *session) closePassive() {
	s.mu.Lock()
	ln := s.pasvListener
	s.pasvListener = nil
	s.mu.Unlock()
	if ln != nil {
		ln.Close()
	}
}

// requireDataPort replies 425 and returns false if neither PORT nor PASV
// has set up a data connection.
func (s *session) requireDataPort() bool {
	s.mu.Lock()
	passive := s.pasvListener != nil
	s.mu.Unlock()
	if s.activeAddr == nil && !passive {
		s.reply(425, "No data port configured, use PORT or PASV.")
		return false
	}
	return true
}

// openDataConn announces the transfer with 150 and establishes the data
// connection. On failure the client has been answered and ok is false.
func (s *session) openDataConn() (conn net.Conn, passive bool, ok bool) {
	if !s.requireDataPort() {
		return nil, false, false
	}
	s.reply(150, "Opening data connection.")

	s.mu.Lock()
	ln := s.pasvListener
	s.mu.Unlock()

	var err error
	if ln != nil {
		passive = true
		conn, err = s.acceptPassive(ln)
	} else {
		conn, err = s.dialActive()
	}
	if err != nil {
		s.reply(425, "Failed to open data connection: "+err.Error())
		return nil, passive, false
	}

	s.mu.Lock()
	s.dataConn = conn
	s.mu.Unlock()

	s.notify(func(e EventLogger) { e.DataOpened(s.peer, conn.RemoteAddr(), conn.LocalAddr(), passive) })
	return conn, passive, true
}

// acceptPassive accepts exactly one connection, then closes the listener.
// The listener stays registered while waiting so that stop can close it.
func (s *session) acceptPassive(ln net.Listener) (net.Conn, error) {
	defer s.closePassive()
	s.server.logger.Debug("waiting for passive connection",
		"session_id", s.id,
		"remote_ip", s.remoteIP,
	)
	if t, ok := ln.(*net.TCPListener); ok {
		_ = t.SetDeadline(time.Now().Add(s.server.dataTimeout))
	}
	return ln.Accept()
}

// dialActive connects to the PORT target, which is consumed.
func (s *session) dialActive() (net.Conn, error) {
	addr := s.activeAddr
	s.activeAddr = nil
	s.server.logger.Debug("dialing active connection",
		"session_id", s.id,
		"remote_ip", s.remoteIP,
		"addr", addr.String(),
	)
	d := net.Dialer{Timeout: s.server.dataTimeout}
	return d.DialContext(s.ctx, "tcp", addr.String())
}

// closeDataConn closes the data connection if it is still the current one.
func (s *session) closeDataConn(conn net.Conn, passive bool) {
	s.mu.Lock()
	current := s.dataConn == conn
	if current {
		s.dataConn = nil
	}
	s.mu.Unlock()
	if !current {
		return
	}
	conn.Close()
	s.notify(func(e EventLogger) { e.DataClosed(s.peer, conn.RemoteAddr(), conn.LocalAddr(), passive) })
}

// sendData transfers src to the client over a new data connection.
func (s *session) sendData(cmd, path string, src io.Reader, ascii bool) {
	conn, passive, ok := s.openDataConn()
	if !ok {
		return
	}
	defer s.closeDataConn(conn, passive)

	var from, to []byte
	if ascii {
		from, to = s.server.localEOL, crlf
	}

	start := time.Now()
	n, err := copyData(s.ctx, s.rateLimitWriter(conn), src, from, to)
	if err != nil {
		s.reply(500, "Transfer failed: "+err.Error())
		return
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.CloseWrite()
	}
	s.closeDataConn(conn, passive)
	s.transferDone(cmd, path, n, time.Since(start))
}

// receiveData transfers the client's upload into dst. The previous content
// of dst is discarded only after the data connection is open.
func (s *session) receiveData(cmd, path string, dst UploadFile, ascii bool) {
	conn, passive, ok := s.openDataConn()
	if !ok {
		return
	}
	defer s.closeDataConn(conn, passive)

	if err := dst.Truncate(0); err != nil {
		s.reply(550, "Cannot overwrite file: "+err.Error())
		return
	}

	var from, to []byte
	if ascii {
		from, to = crlf, s.server.localEOL
	}

	start := time.Now()
	n, err := copyData(s.ctx, dst, s.rateLimitReader(conn), from, to)
	if err != nil {
		s.reply(500, "Transfer failed: "+err.Error())
		return
	}
	s.closeDataConn(conn, passive)
	s.transferDone(cmd, path, n, time.Since(start))
}

func (s *session) transferDone(cmd, path string, n int64, duration time.Duration) {
	if path != "" {
		// Calculate throughput in MB/s
		throughputMBps := float64(0)
		if duration.Seconds() > 0 {
			throughputMBps = float64(n) / duration.Seconds() / 1024 / 1024
		}
		s.server.logger.Info("transfer_complete",
			"session_id", s.id,
			"remote_ip", s.remoteIP,
			"user", s.user,
			"operation", cmd,
			"path", s.redactPath(path),
			"bytes", n,
			"duration_ms", duration.Milliseconds(),
			"throughput_mbps", fmt.Sprintf("%.2f", throughputMBps),
		)
		s.logTransfer(cmd, path, n, duration)
		if s.server.metrics != nil {
			s.server.metrics.RecordTransfer(cmd, n, duration)
		}
	}
	s.reply(226, "Transfer complete.")
}

// listPath strips ls-style flags ("-l", "-la", ...) from a LIST argument.
func listPath(arg string) string {
	arg = strings.TrimSpace(arg)
	for strings.HasPrefix(arg, "-") {
		_, rest, _ := strings.Cut(arg, " ")
		arg = strings.TrimSpace(rest)
	}
	return arg
}

func (s *session) handleLIST(arg string) {
	entries, err := s.fs.List(listPath(arg))
	if err != nil {
		s.replyError(err)
		return
	}
	listing := formatDirList(entries, s.server.now())
	s.sendData("LIST", "", strings.NewReader(listing), false)
}

func (s *session) handleRETR(path string) {
	if !s.requireDataPort() {
		return
	}
	file, err := s.fs.ReadFile(path)
	if err != nil {
		s.replyError(err)
		return
	}
	defer file.Close()

	s.sendData("RETR", path, file, s.transferType == typeASCII)
}

func (s *session) handleSTOR(path string) {
	// Checked first so that a rejected upload leaves no empty file behind.
	if !s.requireDataPort() {
		return
	}
	file, err := s.fs.WriteFile(path)
	if err != nil {
		s.replyError(err)
		return
	}
	defer file.Close()

	s.receiveData("STOR", path, file, s.transferType == typeASCII)
}
