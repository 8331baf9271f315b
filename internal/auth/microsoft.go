package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/DonovanMods/lion-launcher/internal/domain"
)

const (
	clientID = "499c8d36-be2a-4231-9ebd-ef291b7bb64c"
	scope    = "XboxLive.signin offline_access"

	deviceCodeGrant = "urn:ietf:params:oauth:grant-type:device_code"
)

// Endpoints are the Microsoft, Xbox and Minecraft services used for sign-in
type Endpoints struct {
	DeviceCode string
	Token      string
	XBL        string
	XSTS       string
	Minecraft  string // login_with_xbox
	Profile    string
}

// DefaultEndpoints returns the production endpoints
func DefaultEndpoints() Endpoints {
	return Endpoints{
		DeviceCode: "https://login.microsoftonline.com/consumers/oauth2/v2.0/devicecode",
		Token:      "https://login.microsoftonline.com/consumers/oauth2/v2.0/token",
		XBL:        "https://user.auth.xboxlive.com/user/authenticate",
		XSTS:       "https://xsts.auth.xboxlive.com/xsts/authorize",
		Minecraft:  "https://api.minecraftservices.com/authentication/login_with_xbox",
		Profile:    "https://api.minecraftservices.com/minecraft/profile",
	}
}

var (
	errPending  = errors.New("authorization pending")
	errSlowDown = errors.New("slow down")
)

type deviceCodeResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
	Message         string `json:"message"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

type oauthError struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

type xboxResponse struct {
	Token         string `json:"Token"`
	DisplayClaims struct {
		XUI []struct {
			UHS string `json:"uhs"`
		} `json:"xui"`
	} `json:"DisplayClaims"`
}

type xboxError struct {
	XErr    int64  `json:"XErr"`
	Message string `json:"Message"`
}

type minecraftLogin struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type minecraftProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Skins []struct {
		URL   string `json:"url"`
		State string `json:"state"`
	} `json:"skins"`
}

// microsoft talks to the sign-in chain: Microsoft OAuth, Xbox Live, XSTS, Minecraft services
type microsoft struct {
	client    *resty.Client
	endpoints Endpoints
}

func newMicrosoft(httpClient *http.Client, endpoints Endpoints) *microsoft {
	var c *resty.Client
	if httpClient != nil {
		c = resty.NewWithClient(httpClient)
	} else {
		c = resty.New()
	}
	c.SetTimeout(30*time.Second).
		SetHeader("User-Agent", "lion-launcher").
		SetHeader("Accept", "application/json")
	return &microsoft{client: c, endpoints: endpoints}
}

func (m *microsoft) requestDeviceCode(ctx context.Context) (*deviceCodeResponse, error) {
	var out deviceCodeResponse
	var oerr oauthError
	resp, err := m.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{"client_id": clientID, "scope": scope}).
		SetResult(&out).
		SetError(&oerr).
		Post(m.endpoints.DeviceCode)
	if err != nil {
		return nil, &domain.NetworkError{URL: m.endpoints.DeviceCode, Err: err}
	}
	if resp.IsError() {
		return nil, fmt.Errorf("requesting device code: %s: %s", oerr.Code, oerr.Description)
	}
	if out.DeviceCode == "" || out.UserCode == "" {
		return nil, fmt.Errorf("requesting device code: incomplete response")
	}
	return &out, nil
}

// pollToken asks once whether the device code has been authorized
func (m *microsoft) pollToken(ctx context.Context, deviceCode string) (*tokenResponse, error) {
	return m.token(ctx, map[string]string{
		"client_id":   clientID,
		"grant_type":  deviceCodeGrant,
		"device_code": deviceCode,
	})
}

func (m *microsoft) refresh(ctx context.Context, refreshToken string) (*tokenResponse, error) {
	return m.token(ctx, map[string]string{
		"client_id":     clientID,
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
		"scope":         scope,
	})
}

func (m *microsoft) token(ctx context.Context, form map[string]string) (*tokenResponse, error) {
	var out tokenResponse
	var oerr oauthError
	resp, err := m.client.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&out).
		SetError(&oerr).
		Post(m.endpoints.Token)
	if err != nil {
		return nil, &domain.NetworkError{URL: m.endpoints.Token, Err: err}
	}
	if resp.IsError() {
		switch oerr.Code {
		case "authorization_pending":
			return nil, errPending
		case "slow_down":
			return nil, errSlowDown
		case "authorization_declined", "access_denied":
			return nil, fmt.Errorf("%w: %s", domain.ErrAuthDenied, oerr.Code)
		case "expired_token", "invalid_grant":
			return nil, fmt.Errorf("%w: %s", domain.ErrAuthExpired, oerr.Code)
		case "":
			return nil, &domain.NetworkError{URL: m.endpoints.Token, StatusCode: resp.StatusCode(), Attempts: 1}
		default:
			return nil, fmt.Errorf("token request failed: %s: %s", oerr.Code, oerr.Description)
		}
	}
	return &out, nil
}

// signIn exchanges a Microsoft access token for a Minecraft account with its access token
func (m *microsoft) signIn(ctx context.Context, msAccessToken string) (*domain.Account, error) {
	xbl, err := m.xbox(ctx, m.endpoints.XBL, map[string]any{
		"Properties": map[string]any{
			"AuthMethod": "RPS",
			"SiteName":   "user.auth.xboxlive.com",
			"RpsTicket":  "d=" + msAccessToken,
		},
		"RelyingParty": "http://auth.xboxlive.com",
		"TokenType":    "JWT",
	})
	if err != nil {
		return nil, fmt.Errorf("xbox live: %w", err)
	}
	if len(xbl.DisplayClaims.XUI) == 0 || xbl.DisplayClaims.XUI[0].UHS == "" {
		return nil, fmt.Errorf("xbox live: no user hash in response")
	}
	userHash := xbl.DisplayClaims.XUI[0].UHS

	xsts, err := m.xbox(ctx, m.endpoints.XSTS, map[string]any{
		"Properties": map[string]any{
			"SandboxId":  "RETAIL",
			"UserTokens": []string{xbl.Token},
		},
		"RelyingParty": "rp://api.minecraftservices.com/",
		"TokenType":    "JWT",
	})
	if err != nil {
		return nil, fmt.Errorf("xsts: %w", err)
	}

	var login minecraftLogin
	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"identityToken": fmt.Sprintf("XBL3.0 x=%s;%s", userHash, xsts.Token)}).
		SetResult(&login).
		Post(m.endpoints.Minecraft)
	if err != nil {
		return nil, &domain.NetworkError{URL: m.endpoints.Minecraft, Err: err}
	}
	if resp.IsError() {
		return nil, fmt.Errorf("minecraft login: %w", &domain.NetworkError{URL: m.endpoints.Minecraft, StatusCode: resp.StatusCode(), Attempts: 1})
	}

	var profile minecraftProfile
	resp, err = m.client.R().
		SetContext(ctx).
		SetAuthToken(login.AccessToken).
		SetResult(&profile).
		Get(m.endpoints.Profile)
	if err != nil {
		return nil, &domain.NetworkError{URL: m.endpoints.Profile, Err: err}
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("%w: this Microsoft account does not own Minecraft", domain.ErrAuthDenied)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("minecraft profile: %w", &domain.NetworkError{URL: m.endpoints.Profile, StatusCode: resp.StatusCode(), Attempts: 1})
	}

	acct := &domain.Account{
		UUID:        profile.ID,
		Username:    profile.Name,
		Kind:        domain.AccountMicrosoft,
		HeadURL:     headURL(profile.ID),
		AccessToken: login.AccessToken,
		ExpiresAt:   time.Now().Add(time.Duration(login.ExpiresIn) * time.Second),
	}
	for _, s := range profile.Skins {
		if s.State == "ACTIVE" {
			acct.SkinURL = s.URL
			break
		}
	}
	return acct, nil
}

func (m *microsoft) xbox(ctx context.Context, url string, body any) (*xboxResponse, error) {
	var out xboxResponse
	var xerr xboxError
	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&xerr).
		Post(url)
	if err != nil {
		return nil, &domain.NetworkError{URL: url, Err: err}
	}
	if resp.IsError() {
		if xerr.XErr != 0 {
			// e.g. 2148916233: no Xbox profile, 2148916238: child account
			return nil, fmt.Errorf("%w: xbox error %d", domain.ErrAuthDenied, xerr.XErr)
		}
		return nil, &domain.NetworkError{URL: url, StatusCode: resp.StatusCode(), Attempts: 1}
	}
	return &out, nil
}

func headURL(uuid string) string {
	return fmt.Sprintf("https://mc-heads.net/avatar/%s/64", uuid)
}
