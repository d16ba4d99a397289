package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// RevocationStore records revoked token ids until their expiry.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// DefaultRevocationBucket is the JetStream key-value bucket name.
const DefaultRevocationBucket = "admin_token_revocations"

// NATSRevocationStore keeps revocations in a JetStream key-value bucket so
// every API instance sees them. The bucket TTL is the longest token
// lifetime; entries also carry their own expiry.
type NATSRevocationStore struct {
	kv  jetstream.KeyValue
	now func() time.Time
}

// NewNATSRevocationStore creates or updates the bucket and returns a store.
func NewNATSRevocationStore(ctx context.Context, nc *nats.Conn, bucket string, maxTTL time.Duration) (*NATSRevocationStore, error) {
	if bucket == "" {
		bucket = DefaultRevocationBucket
	}
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "Revoked admin token ids",
		TTL:         maxTTL,
		History:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("create key-value bucket %s: %w", bucket, err)
	}
	return &NATSRevocationStore{kv: kv, now: time.Now}, nil
}

// Revoke implements RevocationStore.
func (s *NATSRevocationStore) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	if _, err := s.kv.Put(ctx, tokenID, []byte(until.UTC().Format(time.RFC3339))); err != nil {
		return fmt.Errorf("put revocation %s: %w", tokenID, err)
	}
	return nil
}

// IsRevoked implements RevocationStore.
func (s *NATSRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	entry, err := s.kv.Get(ctx, tokenID)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get revocation %s: %w", tokenID, err)
	}
	until, err := time.Parse(time.RFC3339, string(entry.Value()))
	if err != nil {
		// Unreadable entries fail closed.
		return true, nil
	}
	return s.now().Before(until), nil
}

// MemoryRevocationStore is a process-local RevocationStore, used when NATS
// is not configured and in tests.
type MemoryRevocationStore struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

// NewMemoryRevocationStore creates an empty store.
func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{revoked: make(map[string]time.Time), now: time.Now}
}

// Revoke implements RevocationStore.
func (s *MemoryRevocationStore) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[tokenID] = until
	return nil
}

// IsRevoked implements RevocationStore. Expired entries are dropped.
func (s *MemoryRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.revoked[tokenID]
	if !ok {
		return false, nil
	}
	if !s.now().Before(until) {
		delete(s.revoked, tokenID)
		return false, nil
	}
	return true, nil
}
