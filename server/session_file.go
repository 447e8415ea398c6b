package server

import (
	"strings"
)

// quotePath formats a path for a 257 reply, doubling embedded quotes.
func quotePath(p string) string {
	return `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
}

func (s *session) handlePWD(_ string) {
	cwd, err := s.fs.CurrentDir()
	if err != nil {
		s.replyError(err)
		return
	}
	s.reply(257, quotePath(cwd))
}

func (s *session) handleCWD(path string) {
	if _, err := s.fs.ChangeDir(path); err != nil {
		s.replyError(err)
		return
	}
	s.replyOK(250)
}

func (s *session) handleCDUP(_ string) {
	if _, err := s.fs.ChangeToParentDir(); err != nil {
		s.replyError(err)
		return
	}
	s.replyOK(250)
}

func (s *session) handleMKD(path string) {
	created, err := s.fs.MakeDir(path)
	if err != nil {
		s.replyError(err)
		return
	}
	s.server.logger.Info("directory_created",
		"session_id", s.id,
		"remote_ip", s.remoteIP,
		"user", s.user,
		"path", s.redactPath(created),
	)
	s.reply(257, quotePath(created))
}

func (s *session) handleRMD(path string) {
	if err := s.fs.RemoveDir(path); err != nil {
		s.replyError(err)
		return
	}
	s.server.logger.Info("directory_removed",
		"session_id", s.id,
		"remote_ip", s.remoteIP,
		"user", s.user,
		"path", s.redactPath(path),
	)
	s.replyOK(250)
}

func (s *session) handleDELE(path string) {
	if err := s.fs.RemoveFile(path); err != nil {
		s.replyError(err)
		return
	}
	s.server.logger.Info("file_deleted",
		"session_id", s.id,
		"remote_ip", s.remoteIP,
		"user", s.user,
		"path", s.redactPath(path),
	)
	s.replyOK(250)
}

func (s *session) handleRNFR(path string) {
	if strings.TrimSpace(path) == "" {
		s.reply(500, "Empty path is invalid.")
		return
	}
	s.renameFrom = path
	s.reply(350, "Waiting for target path.")
}

func (s *session) handleRNTO(path string) {
	if s.renameFrom == "" {
		s.reply(503, "Use RNFR before RNTO.")
		return
	}
	from := s.renameFrom
	s.renameFrom = ""

	if err := s.fs.Rename(from, path); err != nil {
		s.replyError(err)
		return
	}
	s.server.logger.Info("file_renamed",
		"session_id", s.id,
		"remote_ip", s.remoteIP,
		"user", s.user,
		"from", s.redactPath(from),
		"to", s.redactPath(path),
	)
	s.replyOK(250)
}
