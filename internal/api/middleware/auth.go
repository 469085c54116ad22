package middleware

import (
	"fmt"
	"net/http"

	"github.com/kiranshivaraju/crashbot/internal/api/response"
	"golang.org/x/crypto/bcrypt"
)

// APIKeyHeader carries the shared API key on protected requests.
const APIKeyHeader = "crashbot"

// Auth checks the shared API key sent by listing consumers.
type Auth struct {
	keyHash []byte
}

// NewAuth creates Auth for apiKey. Only the bcrypt hash of the key is kept.
func NewAuth(apiKey string) (*Auth, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing api key: %w", err)
	}
	return &Auth{keyHash: hash}, nil
}

// NewAuthFromHash creates Auth from an existing bcrypt hash.
func NewAuthFromHash(hash []byte) *Auth {
	return &Auth{keyHash: hash}
}

// Authenticate rejects requests whose API key header is missing or wrong.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawKey := r.Header.Get(APIKeyHeader)
		if rawKey == "" || bcrypt.CompareHashAndPassword(a.keyHash, []byte(rawKey)) != nil {
			response.Error(w, http.StatusForbidden,
				"INVALID_API_KEY", "Not allowed. Invalid API key.", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
