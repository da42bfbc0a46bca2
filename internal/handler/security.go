package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/go-faster/errors"

	"github.com/tactiqa/storefront/internal/domain/auth"
)

// ErrUnauthorized is returned for any authentication failure. The cause is
// deliberately not distinguished to the client.
var ErrUnauthorized = errors.New("unauthorized")

// Security authenticates API requests via HMAC-SHA256 hashed API keys.
type Security struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewSecurity creates a Security with the given API key repository and HMAC
// pepper.
func NewSecurity(apikeys auth.Repository, pepper []byte) *Security {
	return &Security{apikeys: apikeys, pepper: pepper}
}

// Authenticate resolves the caller's identity from the api_key header or an
// Authorization bearer token. The provided key is HMAC-hashed, looked up,
// and compared in constant time to guard against timing side-channels.
func (s *Security) Authenticate(r *http.Request) (*auth.Identity, error) {
	key := r.Header.Get("api_key")
	if key == "" {
		if v := r.Header.Get("Authorization"); strings.HasPrefix(v, "Bearer ") {
			key = strings.TrimPrefix(v, "Bearer ")
		}
	}
	if key == "" {
		return nil, ErrUnauthorized
	}

	mac := hmac.New(sha256.New, s.pepper)
	mac.Write([]byte(key))
	hash := mac.Sum(nil)

	identity, err := s.apikeys.FindByHash(r.Context(), hex.EncodeToString(hash))
	if err != nil {
		return nil, ErrUnauthorized
	}

	storedBytes, err := hex.DecodeString(identity.KeyHash)
	if err != nil {
		return nil, ErrUnauthorized
	}
	if subtle.ConstantTimeCompare(hash, storedBytes) != 1 {
		return nil, ErrUnauthorized
	}

	return identity, nil
}

// authenticate resolves the caller or writes a 401 and returns nil.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) *auth.Identity {
	identity, err := h.security.Authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, kindUnauthorized, "unauthorized")
		return nil
	}
	return identity
}
