package server

import (
	"strconv"
	"strings"
)

func (s *session) handleSYST(_ string) {
	s.reply(215, "UNIX Type: L8")
}

func (s *session) handleFEAT(_ string) {
	lines := make([]string, 0, len(features)+2)
	lines = append(lines, "Features:")
	for _, f := range features {
		lines = append(lines, " "+f)
	}
	lines = append(lines, "End")
	s.replyLines(211, lines...)
}

func (s *session) handleOPTS(arg string) {
	if strings.EqualFold(strings.TrimSpace(arg), "UTF8 ON") {
		s.reply(200, "Always in UTF8 mode.")
		return
	}
	s.reply(504, "Option not supported.")
}

func (s *session) handleTYPE(arg string) {
	// Only ASCII (A, A N) and Image (I) are supported.
	switch strings.ToUpper(strings.TrimSpace(arg)) {
	case "A", "A N":
		s.transferType = typeASCII
		s.reply(200, "Switching to ASCII mode.")
	case "I":
		s.transferType = typeImage
		s.reply(200, "Switching to binary mode.")
	default:
		s.reply(504, "Type not supported.")
	}
}

func (s *session) handleSIZE(path string) {
	size, err := s.fs.FileSize(path)
	if err != nil {
		s.replyError(err)
		return
	}
	s.reply(213, strconv.FormatInt(size, 10))
}

func (s *session) handleMDTM(path string) {
	mtime, err := s.fs.ModTime(path)
	if err != nil {
		s.replyError(err)
		return
	}
	// RFC 3659 Section 2.3: "Time values are always represented in UTC"
	s.reply(213, mtime.UTC().Format("20060102150405"))
}

// handleSTAT answers STAT <path> with a listing over the control
// connection. The server status form (no argument) is not supported.
func (s *session) handleSTAT(arg string) {
	path := strings.TrimSpace(arg)
	if path == "" {
		s.reply(504, "STAT without a path is not supported.")
		return
	}
	entries, err := s.fs.List(path)
	if err != nil {
		s.replyError(err)
		return
	}
	listing := formatDirList(entries, s.server.now())

	lines := []string{"Status of " + path + ":"}
	for _, line := range strings.Split(strings.TrimSuffix(listing, "\r\n"), "\r\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	lines = append(lines, "End of status.")
	s.replyLines(213, lines...)
}

func (s *session) handleNOOP(_ string) {
	s.replyOK(200)
}
