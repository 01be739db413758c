package api

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/veluxhome/lumen-core/internal/auth"
)

const (
	// ticketTTL bounds the window between requesting a WebSocket ticket
	// and opening the socket with it.
	ticketTTL = 60 * time.Second

	// ticketBytes of randomness per ticket, hex-encoded on the wire.
	ticketBytes = 32
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// ticketStore tracks outstanding WebSocket tickets. A ticket is consumed
// on first use and silently dropped once past its deadline.
type ticketStore struct {
	tickets map[string]ticketEntry
	mu      sync.Mutex
}

type ticketEntry struct {
	expiresAt time.Time
}

var wsTickets = &ticketStore{tickets: make(map[string]ticketEntry)}

// issue records a fresh ticket with the standard TTL.
func (ts *ticketStore) issue(ticket string) {
	ts.mu.Lock()
	ts.tickets[ticket] = ticketEntry{expiresAt: time.Now().Add(ticketTTL)}
	ts.mu.Unlock()
}

// consume removes the ticket and reports whether it was still live.
// Removal happens even for expired tickets, so a replay can never succeed.
func (ts *ticketStore) consume(ticket string) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	entry, ok := ts.tickets[ticket]
	if !ok {
		return false
	}
	delete(ts.tickets, ticket)
	return time.Now().Before(entry.expiresAt)
}

// prune drops tickets that were issued but never redeemed.
func (ts *ticketStore) prune() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := time.Now()
	for ticket, entry := range ts.tickets {
		if now.After(entry.expiresAt) {
			delete(ts.tickets, ticket)
		}
	}
}

// handleLogin verifies the local operator account and issues a signed
// HS256 token. When no JWT secret is configured the whole auth surface is
// disabled and the endpoint answers 503; the same applies when no password
// hash is configured, so there is never a usable default credential.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.secCfg.JWT.Secret == "" {
		writeUnavailable(w, "authentication is disabled")
		return
	}
	if s.secCfg.Auth.PasswordHash == "" {
		writeUnavailable(w, "local account is not configured")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	// Both comparisons are constant-time. A malformed configured hash is
	// logged but answers like a wrong password, to avoid an oracle.
	userOK := subtle.ConstantTimeCompare(
		[]byte(req.Username), []byte(s.secCfg.Auth.Username)) == 1
	passOK, err := auth.VerifyPassword(req.Password, s.secCfg.Auth.PasswordHash)
	if err != nil {
		s.logger.Error("configured password hash is unusable", "error", err)
	}
	if err != nil || !userOK || !passOK {
		writeUnauthorized(w, "invalid credentials")
		return
	}

	ttl := s.secCfg.JWT.AccessTokenTTL
	if ttl == 0 {
		ttl = 15 // minutes
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": req.Username,
		"iat": now.Unix(),
		"exp": now.Add(time.Duration(ttl) * time.Minute).Unix(),
	})

	signed, err := token.SignedString([]byte(s.secCfg.JWT.Secret))
	if err != nil {
		writeInternalError(w, "failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   ttl * 60,
	})
}

// handleWSTicket hands out a short-lived single-use ticket so the browser
// can authenticate the WebSocket upgrade without putting the JWT in a URL.
func (s *Server) handleWSTicket(w http.ResponseWriter, _ *http.Request) {
	ticket := generateTicket()
	wsTickets.issue(ticket)

	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     ticket,
		"expires_in": int(ticketTTL.Seconds()),
	})
}

// validateTicket consumes the ticket and reports whether it was valid.
func validateTicket(ticket string) bool {
	return wsTickets.consume(ticket)
}

// generateTicket returns a hex string backed by ticketBytes of entropy.
func generateTicket() string {
	b := make([]byte, ticketBytes)
	//nolint:errcheck // crypto/rand.Read cannot fail on supported platforms
	rand.Read(b)
	return hex.EncodeToString(b)
}

// cleanExpiredTickets sweeps the shared store once.
func cleanExpiredTickets() {
	wsTickets.prune()
}

// cleanTicketsLoop sweeps abandoned tickets until ctx is cancelled.
func (s *Server) cleanTicketsLoop(ctx context.Context) {
	ticker := time.NewTicker(ticketTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cleanExpiredTickets()
		}
	}
}
