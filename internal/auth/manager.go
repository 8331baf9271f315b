// Package auth manages Minecraft accounts: Microsoft device code sign-in and offline names.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/DonovanMods/lion-launcher/internal/domain"
	"github.com/DonovanMods/lion-launcher/internal/logging"
)

const (
	offlineAccessToken = "0"
	slowDownSteps      = 5
)

var offlineName = regexp.MustCompile(`^[A-Za-z0-9_]{1,16}$`)

// AccountStore persists account identities and the active pointer
type AccountStore interface {
	SaveAccount(acct *domain.Account) error
	GetAccounts() ([]domain.Account, error)
	GetAccount(uuid string) (*domain.Account, error)
	GetActiveAccount() (*domain.Account, error)
	SetActiveAccount(uuid string) error
	DeleteAccount(uuid string) (string, error)
}

// Option configures a Manager
type Option func(*Manager)

// WithEndpoints overrides the sign-in service locations
func WithEndpoints(e Endpoints) Option {
	return func(m *Manager) {
		m.endpoints = e
	}
}

// WithHTTPClient sets the client used for sign-in requests
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) {
		m.httpClient = c
	}
}

// WithPollUnit scales the provider's interval and expiry values, which are given in seconds
func WithPollUnit(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.pollUnit = d
		}
	}
}

// Manager owns the account list, the active account and token refresh
type Manager struct {
	store      AccountStore
	vault      TokenVault
	endpoints  Endpoints
	httpClient *http.Client
	ms         *microsoft
	pollUnit   time.Duration
	log        zerolog.Logger

	mu     sync.Mutex // guards active
	active string

	refreshMu sync.Mutex
}

// NewManager creates a manager. The active account is loaded from the store.
func NewManager(store AccountStore, vault TokenVault, opts ...Option) (*Manager, error) {
	m := &Manager{
		store:     store,
		vault:     vault,
		endpoints: DefaultEndpoints(),
		pollUnit:  time.Second,
		log:       logging.Get("auth"),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.ms = newMicrosoft(m.httpClient, m.endpoints)

	active, err := store.GetActiveAccount()
	if err != nil {
		return nil, err
	}
	if active != nil {
		m.active = active.UUID
	}
	return m, nil
}

// Accounts returns all accounts without token material
func (m *Manager) Accounts() ([]domain.Account, error) {
	return m.store.GetAccounts()
}

// Active returns the active account without token material, or ErrAuthRequired
func (m *Manager) Active() (*domain.Account, error) {
	m.mu.Lock()
	id := m.active
	m.mu.Unlock()

	if id == "" {
		return nil, domain.ErrAuthRequired
	}
	return m.store.GetAccount(id)
}

// SetActive makes uuid the active account
func (m *Manager) SetActive(uuid string) error {
	uuid = normalizeUUID(uuid)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.SetActiveAccount(uuid); err != nil {
		return err
	}
	m.active = uuid
	return nil
}

// Remove deletes an account and its tokens. When it was active, the oldest remaining account
// becomes active. The new active uuid ("" for none) is returned.
func (m *Manager) Remove(uuid string) (string, error) {
	uuid = normalizeUUID(uuid)

	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := m.store.DeleteAccount(uuid)
	if err != nil {
		return "", err
	}
	if err := m.vault.Delete(uuid); err != nil {
		m.log.Warn().Err(err).Str("uuid", uuid).Msg("Failed to remove stored tokens")
	}

	if m.active == uuid {
		m.active = next
	}
	m.log.Info().Str("uuid", uuid).Str("active", m.active).Msg("Removed account")
	return m.active, nil
}

// AddOffline creates (or reuses) an offline account and makes it active
func (m *Manager) AddOffline(username string) (*domain.Account, error) {
	if !offlineName.MatchString(username) {
		return nil, fmt.Errorf("%w: offline names are 1-16 letters, digits or underscores", domain.ErrInvalidConfig)
	}

	acct := &domain.Account{
		UUID:     OfflineUUID(username),
		Username: username,
		Kind:     domain.AccountOffline,
	}
	acct.HeadURL = headURL(acct.UUID)

	if err := m.store.SaveAccount(acct); err != nil {
		return nil, err
	}
	if err := m.SetActive(acct.UUID); err != nil {
		return nil, err
	}

	acct.Active = true
	acct.AccessToken = offlineAccessToken
	return acct, nil
}

// OfflineUUID derives the stable offline identity for a name: UUIDv5 in the DNS namespace, without dashes
func OfflineUUID(username string) string {
	return normalizeUUID(uuid.NewSHA1(uuid.NameSpaceDNS, []byte(username)).String())
}

// Credentials returns the active account with a usable access token, refreshing Microsoft tokens
// that expire within domain.RefreshBuffer
func (m *Manager) Credentials(ctx context.Context) (*domain.Account, error) {
	acct, err := m.Active()
	if err != nil {
		return nil, err
	}
	if acct.Kind == domain.AccountOffline {
		acct.AccessToken = offlineAccessToken
		return acct, nil
	}
	return m.credentials(ctx, acct, false)
}

// Refresh forces a token refresh for a Microsoft account
func (m *Manager) Refresh(ctx context.Context, uuid string) (*domain.Account, error) {
	acct, err := m.store.GetAccount(normalizeUUID(uuid))
	if err != nil {
		return nil, err
	}
	if acct.Kind == domain.AccountOffline {
		acct.AccessToken = offlineAccessToken
		return acct, nil
	}
	return m.credentials(ctx, acct, true)
}

func (m *Manager) credentials(ctx context.Context, acct *domain.Account, force bool) (*domain.Account, error) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	tokens, err := m.vault.Load(acct.UUID)
	if err != nil {
		return nil, err
	}
	if tokens == nil {
		return nil, fmt.Errorf("%w: no stored tokens for %s", domain.ErrAuthExpired, acct.Username)
	}
	acct.AccessToken = tokens.AccessToken
	acct.RefreshToken = tokens.RefreshToken
	acct.ExpiresAt = tokens.ExpiresAt

	if !force && !acct.NeedsRefresh(time.Now()) {
		return acct, nil
	}
	if acct.RefreshToken == "" {
		return nil, fmt.Errorf("%w: %s has no refresh token", domain.ErrAuthExpired, acct.Username)
	}

	m.log.Debug().Str("uuid", acct.UUID).Msg("Refreshing Microsoft token")
	tok, err := m.ms.refresh(ctx, acct.RefreshToken)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: refreshing %s: %v", domain.ErrAuthExpired, acct.Username, err)
	}

	fresh, err := m.ms.signIn(ctx, tok.AccessToken)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: refreshing %s: %v", domain.ErrAuthExpired, acct.Username, err)
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = acct.RefreshToken
	}

	fresh.Active = acct.Active
	fresh.RefreshToken = tok.RefreshToken
	if err := m.persist(fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

// persist stores a Microsoft account's identity and tokens
func (m *Manager) persist(acct *domain.Account) error {
	if err := m.store.SaveAccount(acct); err != nil {
		return err
	}
	return m.vault.Save(acct.UUID, &Tokens{
		AccessToken:  acct.AccessToken,
		RefreshToken: acct.RefreshToken,
		ExpiresAt:    acct.ExpiresAt,
	})
}

// LoginState is a stage of a device code sign-in
type LoginState int

const (
	LoginIdle LoginState = iota
	LoginDeviceCodeRequested
	LoginAwaitingUser
	LoginAuthorized
	LoginDenied
	LoginExpired
)

func (s LoginState) String() string {
	switch s {
	case LoginIdle:
		return "idle"
	case LoginDeviceCodeRequested:
		return "device code requested"
	case LoginAwaitingUser:
		return "awaiting user authorization"
	case LoginAuthorized:
		return "authorized"
	case LoginDenied:
		return "denied"
	case LoginExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// LoginResult is the outcome of a sign-in attempt
type LoginResult struct {
	State   LoginState
	Account *domain.Account // Set when State is LoginAuthorized
	Err     error
}

// LoginAttempt is one device code sign-in. Show UserCode and VerificationURI to the user, then Poll.
type LoginAttempt struct {
	UserCode        string
	VerificationURI string
	Message         string
	ExpiresAt       time.Time

	m          *Manager
	deviceCode string
	interval   time.Duration

	mu    sync.Mutex
	state LoginState
	once  sync.Once
}

// BeginLogin requests a device code. It does not wait for the user.
func (m *Manager) BeginLogin(ctx context.Context) (*LoginAttempt, error) {
	dc, err := m.ms.requestDeviceCode(ctx)
	if err != nil {
		return nil, err
	}

	interval := dc.Interval
	if interval <= 0 {
		interval = 5
	}
	a := &LoginAttempt{
		UserCode:        dc.UserCode,
		VerificationURI: dc.VerificationURI,
		Message:         dc.Message,
		ExpiresAt:       time.Now().Add(time.Duration(dc.ExpiresIn) * m.pollUnit),
		m:               m,
		deviceCode:      dc.DeviceCode,
		interval:        time.Duration(interval) * m.pollUnit,
		state:           LoginDeviceCodeRequested,
	}
	m.log.Debug().Str("uri", a.VerificationURI).Time("expires", a.ExpiresAt).Msg("Device code issued")
	return a, nil
}

// State returns the attempt's current state
func (a *LoginAttempt) State() LoginState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *LoginAttempt) setState(s LoginState) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// Poll starts polling in the background. The channel delivers exactly one result and is then
// closed. Cancelling ctx stops polling; the result then carries ctx.Err() and the attempt returns
// to LoginIdle. An attempt can be polled once; later calls return a closed channel.
func (a *LoginAttempt) Poll(ctx context.Context) <-chan LoginResult {
	out := make(chan LoginResult, 1)
	started := false
	a.once.Do(func() {
		started = true
		go func() {
			defer close(out)
			out <- a.poll(ctx)
		}()
	})
	if !started {
		close(out)
	}
	return out
}

func (a *LoginAttempt) poll(ctx context.Context) LoginResult {
	a.setState(LoginAwaitingUser)

	deadline := time.NewTimer(time.Until(a.ExpiresAt))
	defer deadline.Stop()

	interval := a.interval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	cancelled := func() LoginResult {
		a.setState(LoginIdle)
		return LoginResult{State: LoginIdle, Err: ctx.Err()}
	}
	expired := func(err error) LoginResult {
		a.setState(LoginExpired)
		return LoginResult{State: LoginExpired, Err: err}
	}
	denied := func(err error) LoginResult {
		a.setState(LoginDenied)
		return LoginResult{State: LoginDenied, Err: err}
	}

	for {
		select {
		case <-ctx.Done():
			return cancelled()
		case <-deadline.C:
			return expired(fmt.Errorf("%w: device code expired", domain.ErrAuthExpired))
		case <-ticker.C:
		}

		tok, err := a.m.ms.pollToken(ctx, a.deviceCode)
		switch {
		case ctx.Err() != nil:
			return cancelled()
		case errors.Is(err, errPending):
			continue
		case errors.Is(err, errSlowDown):
			interval += slowDownSteps * a.m.pollUnit
			ticker.Reset(interval)
			continue
		case errors.Is(err, domain.ErrAuthDenied):
			return denied(err)
		case errors.Is(err, domain.ErrAuthExpired):
			return expired(err)
		case err != nil:
			a.m.log.Warn().Err(err).Msg("Token poll failed, retrying")
			continue
		}

		acct, err := a.m.ms.signIn(ctx, tok.AccessToken)
		if ctx.Err() != nil {
			return cancelled()
		}
		if err != nil {
			if !errors.Is(err, domain.ErrAuthDenied) {
				err = fmt.Errorf("%w: %v", domain.ErrAuthDenied, err)
			}
			return denied(err)
		}
		acct.RefreshToken = tok.RefreshToken

		if err := a.m.completeLogin(acct); err != nil {
			return denied(err)
		}
		a.setState(LoginAuthorized)
		return LoginResult{State: LoginAuthorized, Account: acct}
	}
}

// completeLogin persists a signed-in account and makes it active
func (m *Manager) completeLogin(acct *domain.Account) error {
	if err := m.persist(acct); err != nil {
		return err
	}
	if err := m.SetActive(acct.UUID); err != nil {
		return err
	}
	acct.Active = true
	m.log.Info().Str("username", acct.Username).Msg("Signed in")
	return nil
}

func normalizeUUID(id string) string {
	return strings.ToLower(strings.ReplaceAll(id, "-", ""))
}
