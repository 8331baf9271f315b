package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DonovanMods/lion-launcher/internal/auth"
	"github.com/DonovanMods/lion-launcher/internal/domain"
	"github.com/DonovanMods/lion-launcher/internal/storage/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUUID = "069a79f444e94726a5befca90e38aaf5"

// fakeMicrosoft serves the whole sign-in chain. Token responses are taken from tokenReplies in
// order; the last one repeats.
type fakeMicrosoft struct {
	*httptest.Server

	mu           sync.Mutex
	tokenReplies []string // OAuth error codes, or "" for success
	tokenCalls   atomic.Int64
	refreshCalls atomic.Int64
	expiresIn    int
	profileCode  int
}

func newFakeMicrosoft(t *testing.T, replies ...string) *fakeMicrosoft {
	t.Helper()
	f := &fakeMicrosoft{tokenReplies: replies, expiresIn: 600, profileCode: http.StatusOK}

	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(v)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/devicecode", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"device_code":      "dev-123",
			"user_code":        "ABCD-EFGH",
			"verification_uri": "https://microsoft.com/link",
			"expires_in":       f.expiresIn,
			"interval":         5,
			"message":          "Enter the code",
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("grant_type") == "refresh_token" {
			f.refreshCalls.Add(1)
			if r.Form.Get("refresh_token") != "refresh-1" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"access_token": "ms-2", "refresh_token": "refresh-2", "expires_in": 3600})
			return
		}

		n := int(f.tokenCalls.Add(1)) - 1
		f.mu.Lock()
		reply := ""
		if len(f.tokenReplies) > 0 {
			reply = f.tokenReplies[min(n, len(f.tokenReplies)-1)]
		}
		f.mu.Unlock()

		if reply != "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": reply})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "ms-1", "refresh_token": "refresh-1", "expires_in": 3600})
	})
	mux.HandleFunc("/xbl", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"Token":         "xbl-token",
			"DisplayClaims": map[string]any{"xui": []any{map[string]string{"uhs": "user-hash"}}},
		})
	})
	mux.HandleFunc("/xsts", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Properties struct {
				UserTokens []string
			}
		}
		json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, []string{"xbl-token"}, body.Properties.UserTokens)
		writeJSON(w, http.StatusOK, map[string]any{"Token": "xsts-token"})
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "XBL3.0 x=user-hash;xsts-token", body["identityToken"])
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "mc-token", "expires_in": 86400})
	})
	mux.HandleFunc("/profile", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer mc-token", r.Header.Get("Authorization"))
		if f.profileCode != http.StatusOK {
			w.WriteHeader(f.profileCode)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id":   testUUID,
			"name": "Notch",
			"skins": []any{
				map[string]string{"url": "https://textures.example/old", "state": "INACTIVE"},
				map[string]string{"url": "https://textures.example/skin", "state": "ACTIVE"},
			},
		})
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeMicrosoft) endpoints() auth.Endpoints {
	return auth.Endpoints{
		DeviceCode: f.URL + "/devicecode",
		Token:      f.URL + "/token",
		XBL:        f.URL + "/xbl",
		XSTS:       f.URL + "/xsts",
		Minecraft:  f.URL + "/login",
		Profile:    f.URL + "/profile",
	}
}

func setupTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, database.Close())
	})
	return database
}

func newManager(t *testing.T, f *fakeMicrosoft, database *db.DB) *auth.Manager {
	t.Helper()
	m, err := auth.NewManager(database, auth.NewDBVault(database),
		auth.WithEndpoints(f.endpoints()),
		auth.WithPollUnit(time.Millisecond),
	)
	require.NoError(t, err)
	return m
}

func waitResult(t *testing.T, ch <-chan auth.LoginResult) auth.LoginResult {
	t.Helper()
	select {
	case res, ok := <-ch:
		require.True(t, ok, "channel closed without a result")
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for login result")
		return auth.LoginResult{}
	}
}

func TestLogin_Authorized(t *testing.T) {
	f := newFakeMicrosoft(t, "authorization_pending", "slow_down", "authorization_pending", "")
	database := setupTestDB(t)
	m := newManager(t, f, database)

	attempt, err := m.BeginLogin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ABCD-EFGH", attempt.UserCode)
	assert.Equal(t, "https://microsoft.com/link", attempt.VerificationURI)
	assert.Equal(t, auth.LoginDeviceCodeRequested, attempt.State())

	res := waitResult(t, attempt.Poll(context.Background()))
	require.NoError(t, res.Err)
	assert.Equal(t, auth.LoginAuthorized, res.State)
	assert.Equal(t, auth.LoginAuthorized, attempt.State())
	assert.Equal(t, int64(4), f.tokenCalls.Load())

	require.NotNil(t, res.Account)
	assert.Equal(t, testUUID, res.Account.UUID)
	assert.Equal(t, "Notch", res.Account.Username)
	assert.Equal(t, "https://textures.example/skin", res.Account.SkinURL)
	assert.Equal(t, "mc-token", res.Account.AccessToken)

	active, err := m.Active()
	require.NoError(t, err)
	assert.Equal(t, testUUID, active.UUID)
	assert.Equal(t, domain.AccountMicrosoft, active.Kind)

	tokens, err := auth.NewDBVault(database).Load(testUUID)
	require.NoError(t, err)
	require.NotNil(t, tokens)
	assert.Equal(t, "mc-token", tokens.AccessToken)
	assert.Equal(t, "refresh-1", tokens.RefreshToken)
}

func TestLogin_Denied(t *testing.T) {
	f := newFakeMicrosoft(t, "authorization_pending", "authorization_declined")
	m := newManager(t, f, setupTestDB(t))

	attempt, err := m.BeginLogin(context.Background())
	require.NoError(t, err)

	res := waitResult(t, attempt.Poll(context.Background()))
	assert.Equal(t, auth.LoginDenied, res.State)
	assert.ErrorIs(t, res.Err, domain.ErrAuthDenied)

	_, err = m.Active()
	assert.ErrorIs(t, err, domain.ErrAuthRequired)
}

func TestLogin_ExpiredToken(t *testing.T) {
	f := newFakeMicrosoft(t, "expired_token")
	m := newManager(t, f, setupTestDB(t))

	attempt, err := m.BeginLogin(context.Background())
	require.NoError(t, err)

	res := waitResult(t, attempt.Poll(context.Background()))
	assert.Equal(t, auth.LoginExpired, res.State)
	assert.ErrorIs(t, res.Err, domain.ErrAuthExpired)
}

func TestLogin_DeadlinePasses(t *testing.T) {
	f := newFakeMicrosoft(t, "authorization_pending")
	f.expiresIn = 50 // milliseconds with the test poll unit
	m := newManager(t, f, setupTestDB(t))

	attempt, err := m.BeginLogin(context.Background())
	require.NoError(t, err)

	res := waitResult(t, attempt.Poll(context.Background()))
	assert.Equal(t, auth.LoginExpired, res.State)
	assert.ErrorIs(t, res.Err, domain.ErrAuthExpired)
}

func TestLogin_NoMinecraftLicense(t *testing.T) {
	f := newFakeMicrosoft(t, "")
	f.profileCode = http.StatusNotFound
	m := newManager(t, f, setupTestDB(t))

	attempt, err := m.BeginLogin(context.Background())
	require.NoError(t, err)

	res := waitResult(t, attempt.Poll(context.Background()))
	assert.Equal(t, auth.LoginDenied, res.State)
	assert.ErrorIs(t, res.Err, domain.ErrAuthDenied)
}

func TestLogin_CancelledNeverAuthorizes(t *testing.T) {
	f := newFakeMicrosoft(t, "authorization_pending")
	database := setupTestDB(t)
	m := newManager(t, f, database)

	attempt, err := m.BeginLogin(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ch := attempt.Poll(ctx)

	require.Eventually(t, func() bool { return f.tokenCalls.Load() >= 2 }, 5*time.Second, time.Millisecond)

	// From here on the provider would authorize, but the attempt is already cancelled
	cancel()
	f.mu.Lock()
	f.tokenReplies = []string{""}
	f.mu.Unlock()

	res := waitResult(t, ch)
	assert.Equal(t, auth.LoginIdle, res.State)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Nil(t, res.Account)
	assert.NotEqual(t, auth.LoginAuthorized, attempt.State())

	_, open := <-ch
	assert.False(t, open)

	accounts, err := m.Accounts()
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestLogin_PollOnce(t *testing.T) {
	f := newFakeMicrosoft(t, "")
	m := newManager(t, f, setupTestDB(t))

	attempt, err := m.BeginLogin(context.Background())
	require.NoError(t, err)

	first := attempt.Poll(context.Background())
	second := attempt.Poll(context.Background())

	_, open := <-second
	assert.False(t, open)
	assert.Equal(t, auth.LoginAuthorized, waitResult(t, first).State)
}

func TestAddOffline(t *testing.T) {
	m := newManager(t, newFakeMicrosoft(t), setupTestDB(t))

	acct, err := m.AddOffline("Steve_01")
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), acct.UUID)
	assert.Equal(t, byte('5'), acct.UUID[12], "version nibble")
	assert.Equal(t, auth.OfflineUUID("Steve_01"), acct.UUID)
	assert.NotEqual(t, auth.OfflineUUID("Alex"), acct.UUID)
	assert.Equal(t, "0", acct.AccessToken)
	assert.Equal(t, "legacy", acct.UserType())

	creds, err := m.Credentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, acct.UUID, creds.UUID)
	assert.Equal(t, "0", creds.AccessToken)
}

func TestAddOffline_InvalidNames(t *testing.T) {
	m := newManager(t, newFakeMicrosoft(t), setupTestDB(t))

	for _, name := range []string{"", "has space", "seventeen_chars__", "dash-name", "ümlaut"} {
		_, err := m.AddOffline(name)
		assert.ErrorIs(t, err, domain.ErrInvalidConfig, name)
	}
}

func TestCredentials_NoAccount(t *testing.T) {
	m := newManager(t, newFakeMicrosoft(t), setupTestDB(t))

	_, err := m.Credentials(context.Background())
	assert.ErrorIs(t, err, domain.ErrAuthRequired)
}

func seedMicrosoft(t *testing.T, database *db.DB, refreshToken string, expiresAt time.Time) {
	t.Helper()
	require.NoError(t, database.SaveAccount(&domain.Account{UUID: testUUID, Username: "Notch", Kind: domain.AccountMicrosoft}))
	require.NoError(t, database.SetActiveAccount(testUUID))
	require.NoError(t, auth.NewDBVault(database).Save(testUUID, &auth.Tokens{
		AccessToken:  "old-token",
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}))
}

func TestCredentials_FreshTokenNotRefreshed(t *testing.T) {
	f := newFakeMicrosoft(t)
	database := setupTestDB(t)
	seedMicrosoft(t, database, "refresh-1", time.Now().Add(time.Hour))
	m := newManager(t, f, database)

	creds, err := m.Credentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "old-token", creds.AccessToken)
	assert.Equal(t, int64(0), f.refreshCalls.Load())
}

func TestCredentials_RefreshesNearExpiry(t *testing.T) {
	f := newFakeMicrosoft(t)
	database := setupTestDB(t)
	seedMicrosoft(t, database, "refresh-1", time.Now().Add(time.Minute))
	m := newManager(t, f, database)

	creds, err := m.Credentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "mc-token", creds.AccessToken)
	assert.Equal(t, "msa", creds.UserType())
	assert.Equal(t, int64(1), f.refreshCalls.Load())

	tokens, err := auth.NewDBVault(database).Load(testUUID)
	require.NoError(t, err)
	assert.Equal(t, "refresh-2", tokens.RefreshToken)
	assert.True(t, tokens.ExpiresAt.After(time.Now().Add(time.Hour)))
}

func TestCredentials_RefreshFailureRequiresLogin(t *testing.T) {
	f := newFakeMicrosoft(t)
	database := setupTestDB(t)
	seedMicrosoft(t, database, "revoked", time.Now().Add(-time.Hour))
	m := newManager(t, f, database)

	_, err := m.Credentials(context.Background())
	assert.ErrorIs(t, err, domain.ErrAuthExpired)
}

func TestRefresh_Forced(t *testing.T) {
	f := newFakeMicrosoft(t)
	database := setupTestDB(t)
	seedMicrosoft(t, database, "refresh-1", time.Now().Add(time.Hour))
	m := newManager(t, f, database)

	acct, err := m.Refresh(context.Background(), testUUID)
	require.NoError(t, err)
	assert.Equal(t, "mc-token", acct.AccessToken)
	assert.Equal(t, int64(1), f.refreshCalls.Load())
}

func TestSetActiveAndRemove(t *testing.T) {
	m := newManager(t, newFakeMicrosoft(t), setupTestDB(t))

	alex, err := m.AddOffline("Alex")
	require.NoError(t, err)
	steve, err := m.AddOffline("Steve")
	require.NoError(t, err)

	active, err := m.Active()
	require.NoError(t, err)
	assert.Equal(t, steve.UUID, active.UUID)

	require.NoError(t, m.SetActive(alex.UUID))
	active, err = m.Active()
	require.NoError(t, err)
	assert.Equal(t, alex.UUID, active.UUID)

	err = m.SetActive("ffffffffffffffffffffffffffffffff")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	active, err = m.Active()
	require.NoError(t, err)
	assert.Equal(t, alex.UUID, active.UUID, "failed switch keeps the previous account")

	next, err := m.Remove(alex.UUID)
	require.NoError(t, err)
	assert.Equal(t, steve.UUID, next)

	next, err = m.Remove(steve.UUID)
	require.NoError(t, err)
	assert.Empty(t, next)

	_, err = m.Active()
	assert.ErrorIs(t, err, domain.ErrAuthRequired)
}

func TestNewManager_LoadsActive(t *testing.T) {
	f := newFakeMicrosoft(t)
	database := setupTestDB(t)

	first := newManager(t, f, database)
	acct, err := first.AddOffline("Herobrine")
	require.NoError(t, err)

	second := newManager(t, f, database)
	active, err := second.Active()
	require.NoError(t, err)
	assert.Equal(t, acct.UUID, active.UUID)
}
