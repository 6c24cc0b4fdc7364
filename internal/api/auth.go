package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"
)

// ticketTTL is how long an issued WebSocket ticket stays redeemable.
const ticketTTL = 60 * time.Second

// ticketStore holds pending WebSocket authentication tickets for one server
// instance. Tickets are single-use: redeem removes them whether or not they
// have expired.
type ticketStore struct {
	mu      sync.Mutex
	pending map[string]time.Time
}

func newTicketStore() *ticketStore {
	return &ticketStore{pending: make(map[string]time.Time)}
}

// issue mints a random ticket valid for ticketTTL.
func (ts *ticketStore) issue() string {
	buf := make([]byte, 32)
	//nolint:errcheck // crypto/rand.Read always returns len(buf) on supported platforms
	rand.Read(buf)
	ticket := hex.EncodeToString(buf)

	ts.mu.Lock()
	ts.pending[ticket] = time.Now().Add(ticketTTL)
	ts.mu.Unlock()

	return ticket
}

// redeem consumes a ticket, reporting whether it was outstanding and unexpired.
func (ts *ticketStore) redeem(ticket string) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	expiry, ok := ts.pending[ticket]
	if !ok {
		return false
	}
	delete(ts.pending, ticket)
	return time.Now().Before(expiry)
}

// sweep drops tickets that expired without being redeemed.
func (ts *ticketStore) sweep() {
	now := time.Now()

	ts.mu.Lock()
	for ticket, expiry := range ts.pending {
		if now.After(expiry) {
			delete(ts.pending, ticket)
		}
	}
	ts.mu.Unlock()
}

// handleWSTicket issues a single-use WebSocket authentication ticket, so the
// JWT never appears in a WebSocket URL.
//
// POST /api/v1/auth/ws-ticket
func (s *Server) handleWSTicket(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     s.tickets.issue(),
		"expires_in": int(ticketTTL.Seconds()),
	})
}

// cleanTicketsLoop sweeps unredeemed tickets until the context is cancelled.
func (s *Server) cleanTicketsLoop(ctx context.Context) {
	ticker := time.NewTicker(ticketTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tickets.sweep()
		}
	}
}
