package model

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Adapter is a chat platform bridge authorized to call the engine API.
// Each adapter authenticates with an API key and acts on behalf of the
// players in the rooms it serves.
type Adapter struct {
	ID         uuid.UUID  `json:"id"`
	AdapterID  string     `json:"adapter_id"` // stable human-chosen identifier, e.g. "telegram-eu"
	Name       string     `json:"name"`
	Role       Role       `json:"role"`
	APIKeyHash string     `json:"-"`
	Active     bool       `json:"active"`
	CreatedAt  time.Time  `json:"created_at"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
}

// keySecretLen is the number of random bytes in an API key (48 hex chars).
const keySecretLen = 24

// GenerateRawKey produces a new raw adapter API key in the format
// cdx_<48-char-secret>. The raw key is shown once at creation; only its
// Argon2 hash is stored.
func GenerateRawKey() (string, error) {
	secret := make([]byte, keySecretLen)
	if _, err := rand.Read(secret); err != nil {
		return "", fmt.Errorf("model: generate api key: %w", err)
	}
	return "cdx_" + hex.EncodeToString(secret), nil
}
