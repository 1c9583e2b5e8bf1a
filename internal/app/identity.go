package app

import (
	"context"
	"crypto/sha256"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/crypto/bcrypt"

	"blocknotes/internal/config"
)

type ownerKey struct{}

// OwnerFrom returns the authenticated owner of a request context.
func OwnerFrom(ctx context.Context) (string, bool) {
	owner, ok := ctx.Value(ownerKey{}).(string)
	return owner, ok && owner != ""
}

// tokenTable is one immutable generation of configured tokens. Verified
// tokens are remembered by digest so bcrypt runs once per token.
type tokenTable struct {
	tokens   []config.Token
	verified sync.Map // [32]byte -> owner
}

func (t *tokenTable) lookup(token string) (string, bool) {
	digest := sha256.Sum256([]byte(token))
	if owner, ok := t.verified.Load(digest); ok {
		return owner.(string), true
	}
	for _, ct := range t.tokens {
		if bcrypt.CompareHashAndPassword([]byte(ct.Hash), []byte(token)) == nil {
			t.verified.Store(digest, ct.Owner)
			return ct.Owner, true
		}
	}
	return "", false
}

// Identity resolves bearer tokens to owners. The token table is swapped
// atomically when the config is reloaded.
type Identity struct {
	table atomic.Pointer[tokenTable]
}

func NewIdentity(tokens []config.Token) *Identity {
	id := &Identity{}
	id.SetTokens(tokens)
	return id
}

// SetTokens replaces the token table.
func (id *Identity) SetTokens(tokens []config.Token) {
	id.table.Store(&tokenTable{tokens: append([]config.Token(nil), tokens...)})
}

// Middleware rejects requests without a valid bearer token and stores the
// owner in the request context.
func (id *Identity) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing bearer token"})
			return
		}
		owner, ok := id.table.Load().lookup(token)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid token"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey{}, owner)))
	})
}
