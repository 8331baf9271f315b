package domain

import (
	"strings"
	"time"
)

// AccountKind distinguishes authoritative Microsoft accounts from local offline names
type AccountKind int

const (
	AccountMicrosoft AccountKind = iota
	AccountOffline
)

func (k AccountKind) String() string {
	switch k {
	case AccountMicrosoft:
		return "microsoft"
	case AccountOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// ParseAccountKind converts a string to AccountKind
func ParseAccountKind(s string) AccountKind {
	if strings.EqualFold(s, "offline") {
		return AccountOffline
	}
	return AccountMicrosoft
}

// RefreshBuffer is how long before expiry a Microsoft token is refreshed
const RefreshBuffer = 5 * time.Minute

// Account is a Minecraft identity usable for launching
type Account struct {
	UUID         string // Without dashes
	Username     string
	Kind         AccountKind
	HeadURL      string
	SkinURL      string
	AccessToken  string
	RefreshToken string // Microsoft only
	ExpiresAt    time.Time
	Active       bool
}

// NeedsRefresh reports whether a Microsoft token is expired or about to expire
func (a *Account) NeedsRefresh(now time.Time) bool {
	if a.Kind != AccountMicrosoft {
		return false
	}
	if a.AccessToken == "" {
		return true
	}
	return now.Add(RefreshBuffer).After(a.ExpiresAt)
}

// UserType is the value passed to the game's --userType argument
func (a *Account) UserType() string {
	if a.Kind == AccountMicrosoft {
		return "msa"
	}
	return "legacy"
}
