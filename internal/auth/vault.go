package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zalando/go-keyring"

	"github.com/DonovanMods/lion-launcher/internal/storage/config"
	"github.com/DonovanMods/lion-launcher/internal/storage/db"
)

// keyringService is the service name entries are filed under in the OS keyring
const keyringService = "lion-launcher"

// Tokens is the secret material of a Microsoft account
type Tokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// TokenVault stores Tokens per account UUID. Load returns nil, nil when nothing is stored.
type TokenVault interface {
	Save(uuid string, t *Tokens) error
	Load(uuid string) (*Tokens, error)
	Delete(uuid string) error
}

// NewVault returns the vault selected by the token_store setting
func NewVault(kind string, database *db.DB) (TokenVault, error) {
	switch kind {
	case "", config.TokenStoreDatabase:
		return NewDBVault(database), nil
	case config.TokenStoreKeyring:
		return NewKeyringVault(), nil
	default:
		return nil, fmt.Errorf("unknown token store %q", kind)
	}
}

func tokenKey(uuid string) string {
	return "msa:" + uuid
}

// DBVault keeps tokens in the auth_tokens table
type DBVault struct {
	db *db.DB
}

// NewDBVault creates a vault backed by the launcher database
func NewDBVault(database *db.DB) *DBVault {
	return &DBVault{db: database}
}

func (v *DBVault) Save(uuid string, t *Tokens) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encoding tokens: %w", err)
	}
	return v.db.SaveToken(tokenKey(uuid), string(data), t.ExpiresAt)
}

func (v *DBVault) Load(uuid string) (*Tokens, error) {
	stored, err := v.db.GetToken(tokenKey(uuid))
	if err != nil || stored == nil {
		return nil, err
	}
	var t Tokens
	if err := json.Unmarshal([]byte(stored.Data), &t); err != nil {
		return nil, fmt.Errorf("decoding tokens: %w", err)
	}
	return &t, nil
}

func (v *DBVault) Delete(uuid string) error {
	return v.db.DeleteToken(tokenKey(uuid))
}

// KeyringVault keeps tokens in the OS keyring (Secret Service, Keychain, Credential Manager)
type KeyringVault struct{}

// NewKeyringVault creates a vault backed by the OS keyring
func NewKeyringVault() *KeyringVault {
	return &KeyringVault{}
}

func (v *KeyringVault) Save(uuid string, t *Tokens) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encoding tokens: %w", err)
	}
	if err := keyring.Set(keyringService, tokenKey(uuid), string(data)); err != nil {
		return fmt.Errorf("saving tokens to keyring: %w", err)
	}
	return nil
}

func (v *KeyringVault) Load(uuid string) (*Tokens, error) {
	data, err := keyring.Get(keyringService, tokenKey(uuid))
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading tokens from keyring: %w", err)
	}
	var t Tokens
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return nil, fmt.Errorf("decoding tokens: %w", err)
	}
	return &t, nil
}

func (v *KeyringVault) Delete(uuid string) error {
	err := keyring.Delete(keyringService, tokenKey(uuid))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("removing tokens from keyring: %w", err)
	}
	return nil
}
