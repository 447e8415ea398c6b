package server

import (
	"slices"
	"strings"
)

// handleACCT handles the ACCT command.
// RFC 1123 requires this command, but no account is ever needed here.
func (s *session) handleACCT(_ string) {
	s.reply(202, "Command not implemented, superfluous at this site.")
}

// handleMODE handles the MODE command.
// RFC 1123 requires Stream mode support.
func (s *session) handleMODE(arg string) {
	switch strings.ToUpper(strings.TrimSpace(arg)) {
	case "S":
		s.reply(200, "Mode set to Stream.")
	case "B", "C":
		s.reply(504, "Only Stream mode is supported.")
	default:
		s.reply(504, "Command not implemented for that parameter.")
	}
}

// handleSTRU handles the STRU command.
// RFC 1123 requires File structure support.
func (s *session) handleSTRU(arg string) {
	switch strings.ToUpper(strings.TrimSpace(arg)) {
	case "F":
		s.reply(200, "Structure set to File.")
	case "R", "P":
		s.reply(504, "Only File structure is supported.")
	default:
		s.reply(504, "Command not implemented for that parameter.")
	}
}

// handleHELP lists the supported commands, eight per line.
func (s *session) handleHELP(arg string) {
	if arg = strings.TrimSpace(arg); arg != "" {
		verb := strings.ToUpper(arg)
		if _, ok := commandHandlers[verb]; ok || verb == "USER" || verb == "PASS" || verb == "QUIT" {
			s.reply(214, "Command "+verb+" is supported.")
			return
		}
		s.reply(502, "Unknown command "+verb+".")
		return
	}

	verbs := []string{"USER", "PASS", "QUIT"}
	for verb := range commandHandlers {
		verbs = append(verbs, verb)
	}
	slices.Sort(verbs)

	lines := []string{"The following commands are recognized:"}
	for chunk := range slices.Chunk(verbs, 8) {
		lines = append(lines, " "+strings.Join(chunk, " "))
	}
	lines = append(lines, "Help OK.")
	s.replyLines(214, lines...)
}
