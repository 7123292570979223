package provider

import "sync"

// TokenCell holds the process-wide provider access token. All reads go
// through Get so a cleared token is observed atomically on the next call.
// Consumers subscribe with OnAuthInvalid to learn when the provider has
// rejected the token and a re-authentication is needed.
type TokenCell struct {
	mu    sync.RWMutex
	token string
	subs  []func()
}

// NewTokenCell returns an empty cell.
func NewTokenCell() *TokenCell {
	return &TokenCell{}
}

// Set seeds or replaces the access token.
func (c *TokenCell) Set(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Get returns the current token and whether one is present.
func (c *TokenCell) Get() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token, c.token != ""
}

// Clear drops the token without notifying subscribers. Used for explicit
// disconnects initiated by the user.
func (c *TokenCell) Clear() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// OnAuthInvalid registers fn to run whenever the provider rejects the
// token. Registration is not idempotent; register once at wiring time.
func (c *TokenCell) OnAuthInvalid(fn func()) {
	c.mu.Lock()
	c.subs = append(c.subs, fn)
	c.mu.Unlock()
}

// invalidate clears the token and fires the auth-invalid signal. Called by
// the client on a 401/403 response.
func (c *TokenCell) invalidate() {
	c.mu.Lock()
	c.token = ""
	subs := make([]func(), len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}
