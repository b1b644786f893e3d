package dashboard

import (
	"context"
	"fmt"

	"github.com/nerrad567/nmos-dashboard/internal/notify"
	"github.com/nerrad567/nmos-dashboard/internal/registry"
	"github.com/nerrad567/nmos-dashboard/internal/session"
)

// Login exchanges credentials for a registry token and stores the session.
// The next bridge attempt uses the new token as its broker password.
func (d *Dashboard) Login(ctx context.Context, username, password string) (session.User, error) {
	if d.registry == nil {
		return session.User{}, ErrNoRegistry
	}
	if d.sessions == nil {
		return session.User{}, ErrNoSessionStore
	}

	d.loginMu.Lock()
	defer d.loginMu.Unlock()

	res, err := d.registry.Login(ctx, username, password)
	if err != nil {
		return session.User{}, err
	}

	user := session.User{Username: res.User.Username, Role: res.User.Role}
	if user.Username == "" {
		user.Username = username
	}
	if err := d.sessions.Set(ctx, res.Token, user); err != nil {
		return session.User{}, fmt.Errorf("storing session: %w", err)
	}

	d.logger.Info("logged in to registry", "username", user.Username, "role", user.Role)
	return user, nil
}

// Logout forgets the stored session.
func (d *Dashboard) Logout(ctx context.Context) error {
	if d.sessions == nil {
		return ErrNoSessionStore
	}
	if err := d.sessions.Clear(ctx); err != nil {
		return err
	}
	d.logger.Info("logged out of registry")
	return nil
}

// User returns the logged-in user while the stored token is usable.
func (d *Dashboard) User() (session.User, bool) {
	if d.sessions == nil || !d.sessions.Authenticated() {
		return session.User{}, false
	}
	return d.sessions.User()
}

// Token returns the current registry token, or "".
func (d *Dashboard) Token() string {
	if d.sessions == nil {
		return ""
	}
	return d.sessions.Token()
}

func (d *Dashboard) canLogin() bool {
	return d.registry != nil && d.sessions != nil && d.cfg.Username != ""
}

// ensureLogin logs in with the configured credentials when no usable
// session is stored. Failure is reported, not returned.
func (d *Dashboard) ensureLogin(ctx context.Context) {
	if !d.canLogin() || d.sessions.Authenticated() {
		return
	}
	if _, err := d.relogin(ctx); err != nil {
		d.logger.Error("registry login failed", "username", d.cfg.Username, "error", err)
		d.notes.Add(notify.KindError, "Registry login failed: "+err.Error())
	}
}

func (d *Dashboard) relogin(ctx context.Context) (session.User, error) {
	if !d.canLogin() {
		return session.User{}, ErrNoCredentials
	}
	return d.Login(ctx, d.cfg.Username, d.cfg.Password)
}

// withToken calls fn with the current token. When the registry answers 401
// and credentials are configured, it logs in again and retries once.
func (d *Dashboard) withToken(ctx context.Context, fn func(token string) error) error {
	err := fn(d.Token())
	if !registry.IsUnauthorized(err) || !d.canLogin() {
		return err
	}

	d.logger.Info("registry rejected token, logging in again")
	if _, loginErr := d.relogin(ctx); loginErr != nil {
		return fmt.Errorf("%w; re-login failed: %w", err, loginErr)
	}
	return fn(d.Token())
}
