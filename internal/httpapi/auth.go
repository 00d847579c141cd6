package httpapi

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

// APIKeyRecord is one issued key: only its peppered hash is ever kept in
// memory, never the plaintext (supplemented feature, spec.md §6's
// OMEN_API_KEY_PEPPER + original_source's api_key_manager.py).
type APIKeyRecord struct {
	KeyHash string
	Name    string
	Scopes  []string
	Active  bool
}

// HashAPIKey peppers and SHA-256-hashes a presented plaintext key, the
// same "pepper:plaintext" construction original_source/.../
// api_key_manager.py's _hash_key uses.
func HashAPIKey(pepper, plaintext string) string {
	sum := sha256.Sum256([]byte(pepper + ":" + plaintext))
	return hex.EncodeToString(sum[:])
}

// Authenticator verifies X-API-Key headers against a set of known hashes
// using a constant-time comparison, never plaintext.
type Authenticator struct {
	pepper string
	byHash map[string]APIKeyRecord
}

// NewAuthenticator builds an authenticator over an already-hashed key set.
// keys maps a plaintext key's SHA-256(pepper:key) hash to its record.
func NewAuthenticator(pepper string, keys map[string]APIKeyRecord) *Authenticator {
	if keys == nil {
		keys = map[string]APIKeyRecord{}
	}
	return &Authenticator{pepper: pepper, byHash: keys}
}

// Register adds or replaces a key, given its plaintext — the plaintext is
// hashed immediately and discarded, only the hash is retained.
func (a *Authenticator) Register(plaintext string, rec APIKeyRecord) {
	rec.KeyHash = HashAPIKey(a.pepper, plaintext)
	a.byHash[rec.KeyHash] = rec
}

// Verify checks presentedKey against the known hash set, constant-time.
func (a *Authenticator) Verify(presentedKey string) (APIKeyRecord, bool) {
	if presentedKey == "" {
		return APIKeyRecord{}, false
	}
	want := HashAPIKey(a.pepper, presentedKey)
	for hash, rec := range a.byHash {
		if subtle.ConstantTimeCompare([]byte(hash), []byte(want)) == 1 {
			if !rec.Active {
				return APIKeyRecord{}, false
			}
			return rec, true
		}
	}
	return APIKeyRecord{}, false
}

// hasScope reports whether rec carries scope, or the "admin" scope.
func hasScope(rec APIKeyRecord, scope string) bool {
	for _, s := range rec.Scopes {
		if s == scope || s == "admin" {
			return true
		}
	}
	return false
}

// RequireAuth wraps next, rejecting requests that lack a valid X-API-Key
// with the required scope (spec.md §6: 401 INVALID_API_KEY /
// AUTHENTICATION_REQUIRED, 403 INSUFFICIENT_PERMISSIONS).
func (s *Server) RequireAuth(scope string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		presented := strings.TrimSpace(r.Header.Get("X-API-Key"))
		if presented == "" {
			writeError(w, r, http.StatusUnauthorized, "AUTHENTICATION_REQUIRED", "missing X-API-Key header", nil)
			return
		}
		rec, ok := s.auth.Verify(presented)
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "INVALID_API_KEY", "the presented API key is invalid or revoked", nil)
			return
		}
		if scope != "" && !hasScope(rec, scope) {
			writeError(w, r, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "the API key lacks the required scope", map[string]any{
				"required_scopes": []string{scope},
				"missing_scopes":  []string{scope},
			})
			return
		}
		next(w, r)
	}
}
