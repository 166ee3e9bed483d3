package service

import (
	"sync"
	"time"

	"lark/internal/errors"
)

// Checkout session steps.
const (
	StepSelection = "selection"
	StepContact   = "contact"
	StepPayment   = "payment"
	StepReview    = "review"
	StepConfirmed = "confirmed"
	StepAbandoned = "abandoned"
)

// CheckoutSession is the in-flight state of one buyer's checkout. Sessions
// live only in process memory: abandoning one (or letting it expire) must
// leave no persisted state anywhere, so they are deliberately not written to
// the store. All field access happens under mu, which also serializes
// concurrent confirm attempts on the same session.
type CheckoutSession struct {
	mu sync.Mutex

	ID   string
	Step string

	TierID   string
	Quantity int

	BuyerName     string
	BuyerEmail    string
	Authenticated bool

	PaymentMethod string

	OrderID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// sessionStore is an expiring in-memory session table with a janitor
// goroutine, in the spirit of the raw-JSON cache on the hot read path.
type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*CheckoutSession
	ttl      time.Duration
	done     chan struct{}
}

func newSessionStore(ttl time.Duration) *sessionStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	s := &sessionStore{
		sessions: make(map[string]*CheckoutSession),
		ttl:      ttl,
		done:     make(chan struct{}),
	}
	go s.janitor()
	return s
}

func (s *sessionStore) Get(id string) (*CheckoutSession, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.New(errors.KindNotFound, "checkout session not found or expired")
	}
	return sess, nil
}

func (s *sessionStore) Put(sess *CheckoutSession) {
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
}

func (s *sessionStore) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

func (s *sessionStore) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-s.ttl)
			s.mu.Lock()
			for id, sess := range s.sessions {
				if sess.UpdatedAt.Before(cutoff) {
					delete(s.sessions, id)
				}
			}
			s.mu.Unlock()
		case <-s.done:
			return
		}
	}
}

func (s *sessionStore) Close() {
	close(s.done)
}
