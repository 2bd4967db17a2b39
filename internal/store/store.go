package store

import (
	"sync"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/FedericoLuque/lightning-server-Nostr-zaps/internal/nostrzap"
)

// PendingZap is an invoice issued for a validated zap request, waiting for
// settlement. Entries are immutable once stored.
type PendingZap struct {
	PaymentHash string
	Request     *nostr.Event
	RawRequest  string // the request JSON exactly as received, used verbatim in the receipt description
	Facts       *nostrzap.Facts
	AmountMsat  int64
	Bolt11      string
	CreatedAt   time.Time
}

// Store tracks pending zaps by payment hash. All methods are safe for
// concurrent use; the map holds at most one entry per payment hash.
type Store struct {
	mu      sync.Mutex
	entries map[string]*PendingZap
}

func New() *Store {
	return &Store{
		entries: make(map[string]*PendingZap),
	}
}

// Put inserts a pending zap. Returns false if an entry with the same
// payment hash already exists; the existing entry is kept.
func (s *Store) Put(pending *PendingZap) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[pending.PaymentHash]; exists {
		return false
	}
	if pending.CreatedAt.IsZero() {
		pending.CreatedAt = time.Now()
	}
	s.entries[pending.PaymentHash] = pending
	return true
}

// Get returns the pending zap for a payment hash, if present
func (s *Store) Get(paymentHash string) (*PendingZap, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, ok := s.entries[paymentHash]
	return pending, ok
}

// Take atomically removes and returns the entry for a payment hash.
// Only one caller can ever receive a given entry, which is what keeps
// receipt publication at-most-once under overlapping settlement signals.
func (s *Store) Take(paymentHash string) (*PendingZap, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, ok := s.entries[paymentHash]
	if ok {
		delete(s.entries, paymentHash)
	}
	return pending, ok
}

// Remove deletes the entry for a payment hash. Returns false if absent.
func (s *Store) Remove(paymentHash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[paymentHash]; !ok {
		return false
	}
	delete(s.entries, paymentHash)
	return true
}

// Keys returns a snapshot of the payment hashes currently tracked
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.entries))
	for hash := range s.entries {
		keys = append(keys, hash)
	}
	return keys
}

// Len returns the number of tracked entries
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

// Sweep evicts every entry older than maxAge and returns how many were
// removed. Bounds memory growth from invoices that are never paid.
func (s *Store) Sweep(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for hash, pending := range s.entries {
		if now.Sub(pending.CreatedAt) > maxAge {
			delete(s.entries, hash)
			removed++
		}
	}
	return removed
}
