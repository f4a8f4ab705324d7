package tokenstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/onnwee/portfolio/backend/internal/grant"
)

// Memory is a process-local grant.TokenStore for development without a
// database. Nothing survives a restart.
type Memory struct {
	mu     sync.Mutex
	nextID int64
	tokens map[string]grant.AccessToken // by hash
	grants []grant.GrantRecord
	now    func() time.Time
}

// NewMemory creates an empty store. now may be nil.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{tokens: make(map[string]grant.AccessToken), now: now}
}

// Issue stores a new token and returns its plaintext.
func (m *Memory) Issue(ctx context.Context, n NewToken) (string, grant.AccessToken, error) {
	if err := n.Validate(); err != nil {
		return "", grant.AccessToken{}, err
	}
	token, err := Generate()
	if err != nil {
		return "", grant.AccessToken{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	t := grant.AccessToken{
		ID:             m.nextID,
		Label:          n.Label,
		Repository:     n.Repository,
		Permission:     n.Permission,
		AccessDuration: n.AccessDuration,
	}
	if n.ValidFor > 0 {
		t.ExpiresAt = m.now().Add(n.ValidFor)
	}
	m.tokens[Hash(token)] = t
	return token, t, nil
}

// Lookup implements grant.TokenStore.
func (m *Memory) Lookup(ctx context.Context, token string) (grant.AccessToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tokens[Hash(token)]
	if !ok {
		return grant.AccessToken{}, grant.ErrTokenNotFound
	}
	return t, nil
}

// MarkUsed implements grant.TokenStore.
func (m *Memory) MarkUsed(ctx context.Context, tokenID int64, rec grant.GrantRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for hash, t := range m.tokens {
		if t.ID != tokenID {
			continue
		}
		if t.Used() {
			return grant.ErrTokenUsed
		}
		t.UsedAt = rec.GrantedAt
		m.tokens[hash] = t

		m.nextID++
		rec.ID = m.nextID
		rec.TokenID = tokenID
		m.grants = append(m.grants, rec)
		return nil
	}
	return grant.ErrTokenNotFound
}

// ExpiredGrants implements grant.TokenStore.
func (m *Memory) ExpiredGrants(ctx context.Context, now time.Time) ([]grant.GrantRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []grant.GrantRecord
	for _, g := range m.grants {
		if !g.RevokedAt.IsZero() || g.ExpiresAt.IsZero() || g.ExpiresAt.After(now) {
			continue
		}
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExpiresAt.Equal(out[j].ExpiresAt) {
			return out[i].ExpiresAt.Before(out[j].ExpiresAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// MarkRevoked implements grant.TokenStore.
func (m *Memory) MarkRevoked(ctx context.Context, grantID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.grants {
		if m.grants[i].ID == grantID {
			m.grants[i].RevokedAt = at
			return nil
		}
	}
	return nil
}

// Counts reports outstanding tokens and active grants as of now.
func (m *Memory) Counts(ctx context.Context, now time.Time) (Counts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var c Counts
	for _, t := range m.tokens {
		if !t.Used() && !t.Expired(now) {
			c.OutstandingTokens++
		}
	}
	for _, g := range m.grants {
		if g.RevokedAt.IsZero() {
			c.ActiveGrants++
		}
	}
	return c, nil
}
