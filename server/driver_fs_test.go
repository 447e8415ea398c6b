package server

import (
	"bytes"
	"log/slog"
	"net"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestAnonymousAuth(t *testing.T) {
	var a Authenticator = AnonymousAuth{}

	tests := []struct {
		login Login
		want  bool
	}{
		{Login{Stage: LoginAnonymous}, false},
		{Login{Stage: LoginUser, User: "anonymous"}, true},
		{Login{Stage: LoginUser, User: "ftp"}, false},
		{Login{Stage: LoginUser, User: "ANONYMOUS"}, false},
		{Login{Stage: LoginUser, User: "bob"}, false},
		{Login{Stage: LoginPassword, User: "anonymous", Password: "me@example.com"}, true},
		{Login{Stage: LoginPassword, User: "bob", Password: "secret"}, false},
	}
	for _, tt := range tests {
		if got := a.Clone().AllowLogin(tt.login); got != tt.want {
			t.Errorf("AllowLogin(%s %q) = %v, want %v", tt.login.Stage, tt.login.User, got, tt.want)
		}
	}
}

func TestPasswordAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	fatalIfErr(t, err, "hash")

	strict, err := NewPasswordAuth(map[string]string{"alice": string(hash)}, false)
	fatalIfErr(t, err, "NewPasswordAuth")
	open, err := NewPasswordAuth(map[string]string{"alice": string(hash)}, true)
	fatalIfErr(t, err, "NewPasswordAuth")

	tests := []struct {
		name  string
		auth  Authenticator
		login Login
		want  bool
	}{
		{"no anonymous stage", strict, Login{Stage: LoginAnonymous}, false},
		{"user needs password", strict, Login{Stage: LoginUser, User: "alice"}, false},
		{"good password", strict, Login{Stage: LoginPassword, User: "alice", Password: "s3cret"}, true},
		{"bad password", strict, Login{Stage: LoginPassword, User: "alice", Password: "S3cret"}, false},
		{"unknown user", strict, Login{Stage: LoginPassword, User: "mallory", Password: "s3cret"}, false},
		{"anonymous refused", strict, Login{Stage: LoginUser, User: "anonymous"}, false},
		{"anonymous password refused", strict, Login{Stage: LoginPassword, User: "anonymous"}, false},
		{"anonymous allowed", open, Login{Stage: LoginUser, User: "anonymous"}, true},
		{"users still checked", open, Login{Stage: LoginPassword, User: "alice", Password: "x"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.auth.Clone().AllowLogin(tt.login); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewPasswordAuthRejectsBadHash(t *testing.T) {
	if _, err := NewPasswordAuth(map[string]string{"alice": "plaintext"}, false); err == nil {
		t.Error("expected an error for a non-bcrypt hash")
	}
	if _, err := NewPasswordAuth(map[string]string{"": "$2a$04$abcdefghijklmnopqrstuu"}, false); err == nil {
		t.Error("expected an error for an empty user name")
	}
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("pw")
	fatalIfErr(t, err, "HashPassword")
	auth, err := NewPasswordAuth(map[string]string{"u": hash}, false)
	fatalIfErr(t, err, "NewPasswordAuth")
	if !auth.AllowLogin(Login{Stage: LoginPassword, User: "u", Password: "pw"}) {
		t.Error("hash does not verify")
	}
}

func TestOpenAuthAllowsEverything(t *testing.T) {
	for _, stage := range []LoginStage{LoginAnonymous, LoginUser, LoginPassword} {
		if !(OpenAuth{}).AllowLogin(Login{Stage: stage}) {
			t.Errorf("OpenAuth refused stage %s", stage)
		}
	}
}

func TestSlogEventLogger(t *testing.T) {
	peer := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 5000}

	for _, verbose := range []bool{false, true} {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		l := NewSlogEventLogger(logger, verbose)

		l.ControlOpened(peer)
		l.CommandReceived(peer, "CWD", "pub")
		l.ResponseSent(peer, 250, "Sounds good.")
		l.DataOpened(peer, peer, peer, true)
		l.DataClosed(peer, peer, peer, true)
		l.ControlClosed(peer)

		out := buf.String()
		if !strings.Contains(out, "msg=control_opened peer=127.0.0.1:5000") || !strings.Contains(out, "msg=control_closed") {
			t.Errorf("verbose=%v: connection events missing:\n%s", verbose, out)
		}
		for _, ev := range []string{"command_received", "response_sent", "data_opened", "data_closed"} {
			if strings.Contains(out, ev) != verbose {
				t.Errorf("verbose=%v: event %s presence wrong:\n%s", verbose, ev, out)
			}
		}
	}
}
