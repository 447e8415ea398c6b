package server

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/gonzalop/vftpd/vfs"
)

// resolverFS exposes a vfs.Resolver as a FileSystem.
type resolverFS struct {
	*vfs.Resolver
}

// NewFileSystem returns a FileSystem backed by r. Sessions receive clones,
// so r itself only provides the starting directory.
//
// Basic usage:
//
//	r, err := vfs.New(vfs.WithBase("/srv/ftp"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	s, err := server.NewServer(":21", server.WithFileSystem(server.NewFileSystem(r)))
func NewFileSystem(r *vfs.Resolver) FileSystem {
	return resolverFS{Resolver: r}
}

func (f resolverFS) Clone() FileSystem {
	return resolverFS{Resolver: f.Resolver.Clone()}
}

func (f resolverFS) WriteFile(path string) (UploadFile, error) {
	file, err := f.Resolver.WriteFile(path)
	if err != nil {
		return nil, err
	}
	return file, nil
}

// isAnonymousUser reports whether user names the anonymous account. The
// match is exact.
func isAnonymousUser(user string) bool {
	return user == "anonymous"
}

// AnonymousAuth lets the "anonymous" user in right after USER.
// Any other user is refused. This is the default authenticator.
type AnonymousAuth struct{}

func (AnonymousAuth) AllowLogin(l Login) bool {
	switch l.Stage {
	case LoginUser, LoginPassword:
		return isAnonymousUser(l.User)
	}
	return false
}

func (a AnonymousAuth) Clone() Authenticator { return a }

// OpenAuth admits every connection without USER/PASS.
type OpenAuth struct{}

func (OpenAuth) AllowLogin(Login) bool { return true }

func (a OpenAuth) Clone() Authenticator { return a }

// PasswordAuth checks credentials against bcrypt password hashes.
type PasswordAuth struct {
	users     map[string][]byte
	anonymous bool
}

// NewPasswordAuth creates an authenticator from a map of user name to
// bcrypt hash. If allowAnonymous is set the anonymous users are admitted
// as with AnonymousAuth.
//
// Example:
//
//	hash, _ := server.HashPassword("secret")
//	auth, err := server.NewPasswordAuth(map[string]string{"alice": hash}, false)
func NewPasswordAuth(users map[string]string, allowAnonymous bool) (*PasswordAuth, error) {
	p := &PasswordAuth{
		users:     make(map[string][]byte, len(users)),
		anonymous: allowAnonymous,
	}
	for name, hash := range users {
		if name == "" {
			return nil, fmt.Errorf("empty user name")
		}
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("user %q: invalid password hash: %w", name, err)
		}
		p.users[name] = []byte(hash)
	}
	return p, nil
}

func (p *PasswordAuth) AllowLogin(l Login) bool {
	switch l.Stage {
	case LoginUser:
		return p.anonymous && isAnonymousUser(l.User)
	case LoginPassword:
		if p.anonymous && isAnonymousUser(l.User) {
			return true
		}
		hash, ok := p.users[l.User]
		if !ok {
			return false
		}
		return bcrypt.CompareHashAndPassword(hash, []byte(l.Password)) == nil
	}
	return false
}

// Clone returns p. The user table is never modified after construction.
func (p *PasswordAuth) Clone() Authenticator { return p }

// HashPassword returns the bcrypt hash of password for use with
// NewPasswordAuth.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
