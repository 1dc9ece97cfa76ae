package middleware

import (
	"context"
	"sync"
	"time"
)

// LocalBlacklist keeps revoked tokens in process memory. It is used when no
// redis is configured; revocations do not survive a restart.
type LocalBlacklist struct {
	mu     sync.Mutex
	tokens map[string]time.Time
	now    func() time.Time
}

var _ Blacklist = (*LocalBlacklist)(nil)

func NewLocalBlacklist() *LocalBlacklist {
	return &LocalBlacklist{tokens: make(map[string]time.Time), now: time.Now}
}

func (b *LocalBlacklist) WriteJWTToBlacklist(_ context.Context, jwtStr string, jwtTTL time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	for token, expires := range b.tokens {
		if !now.Before(expires) {
			delete(b.tokens, token)
		}
	}
	b.tokens[jwtStr] = now.Add(jwtTTL)
	return nil
}

func (b *LocalBlacklist) IsJWTBlacklisted(_ context.Context, jwtStr string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	expires, ok := b.tokens[jwtStr]
	return ok && b.now().Before(expires), nil
}
