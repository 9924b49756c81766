package runs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"quantgate-hq/ganymede/pkg/runs/idemstore"
)

// DefaultIdempotencyTTL is how long a completed request stays replayable.
const DefaultIdempotencyTTL = 24 * time.Hour

// Fingerprint computes the canonical fingerprint of a request payload:
// the SHA-256 of the payload re-marshaled through an untyped value, which
// sorts object keys and strips formatting. Two payloads that differ only
// in whitespace or key order fingerprint identically.
func Fingerprint(payload []byte) (string, error) {
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return "", fmt.Errorf("failed to canonicalize payload: %w", err)
	}
	canonical, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize payload: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// idempotencyScope renders the (tenant, user) portion of an idempotency
// record key. Keys never collide across tenants or users.
func idempotencyScope(actor *ActorContext) string {
	return actor.TenantID + "/" + actor.OwnerUserID
}

// idemManager serializes effectful operations per idempotency key and
// consults the backend for prior outcomes. Two concurrent requests with the
// same scoped key never both execute the effect.
type idemManager struct {
	backend idemstore.Backend
	ttl     time.Duration

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

func newIdemManager(backend idemstore.Backend, ttl time.Duration) *idemManager {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &idemManager{
		backend: backend,
		ttl:     ttl,
		locks:   make(map[string]*keyLock),
	}
}

// acquire locks the given scoped key, creating the lock on first use and
// releasing the map entry when the last holder returns.
func (m *idemManager) acquire(scope, key string) func() {
	id := scope + "\x00" + key

	m.mu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &keyLock{}
		m.locks[id] = l
	}
	l.refs++
	m.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, id)
		}
		m.mu.Unlock()
	}
}

// execute runs fn at most once per (scope, key, fingerprint). A repeat with
// a matching fingerprint returns the recorded response with replayed=true;
// a mismatched fingerprint is a ConflictError and fn never runs.
func (m *idemManager) execute(ctx context.Context, scope, key, fingerprint string, fn func() ([]byte, error)) (response []byte, replayed bool, err error) {
	release := m.acquire(scope, key)
	defer release()

	prior, err := m.backend.Get(ctx, scope, key)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up idempotency record: %w", err)
	}
	if prior != nil {
		if prior.Fingerprint != fingerprint {
			return nil, false, &ConflictError{Key: key}
		}
		return prior.Response, true, nil
	}

	response, err = fn()
	if err != nil {
		return nil, false, err
	}

	now := time.Now().UTC()
	record := &idemstore.Record{
		Scope:       scope,
		Key:         key,
		Fingerprint: fingerprint,
		Response:    response,
		CreatedAt:   now,
		ExpiresAt:   now.Add(m.ttl),
	}
	if err := m.backend.Put(ctx, record); err != nil {
		return nil, false, fmt.Errorf("failed to store idempotency record: %w", err)
	}
	return response, false, nil
}
