// Package session persists the dashboard's login across restarts.
//
// The token and user are stored under the same keys the browser dashboard
// uses in local storage (go_nmos_token, go_nmos_user), in the session_kv
// table. Token returns "" once the JWT's exp claim has passed, so callers
// never send a token the registry is certain to reject.
//
// The signature is not checked here; the registry does that.
package session
