package server

func (s *session) handleUSER(user string) {
	if s.loggedIn {
		s.reply(230, "You are already logged in.")
		return
	}
	if user == "" {
		s.reply(530, "Please login first.")
		return
	}

	if s.auth.AllowLogin(Login{Stage: LoginUser, User: user}) {
		s.loginSucceeded(user)
		return
	}
	s.pendingUser = user
	s.hasPendingUser = true
	s.reply(331, "Password please.")
}

func (s *session) handlePASS(pass string) {
	if s.loggedIn {
		s.reply(230, "You are already logged in.")
		return
	}
	if !s.hasPendingUser {
		s.reply(530, "No USER specified.")
		return
	}

	user := s.pendingUser
	s.pendingUser = ""
	s.hasPendingUser = false

	if !s.auth.AllowLogin(Login{Stage: LoginPassword, User: user, Password: pass}) {
		// Security audit: failed authentication
		s.server.logger.Warn("authentication_failed",
			"session_id", s.id,
			"remote_ip", s.remoteIP,
			"user", user,
		)
		if s.server.metrics != nil {
			s.server.metrics.RecordAuthentication(false, user)
		}
		s.reply(530, "Login failed, please try again.")
		return
	}
	s.loginSucceeded(user)
}

func (s *session) loginSucceeded(user string) {
	s.loggedIn = true
	s.user = user
	// Security audit: successful authentication
	s.server.logger.Info("authentication_success",
		"session_id", s.id,
		"remote_ip", s.remoteIP,
		"user", user,
	)
	if s.server.metrics != nil {
		s.server.metrics.RecordAuthentication(true, user)
	}
	s.reply(230, "Login successful.")
}

func (s *session) handleQUIT(_ string) {
	s.quit = true
	s.reply(221, "Bye.")
}
