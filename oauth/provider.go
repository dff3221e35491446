package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const maxProfileBytes = 1 << 20

// Profile is the provider-neutral subset of a user profile.
type Profile struct {
	ID           string
	Email        string
	Nickname     string
	ProfileImage string
}

// ProviderConfig holds the client registration for one provider. Endpoint
// and UserInfoURL override the provider defaults.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	Endpoint    oauth2.Endpoint
	UserInfoURL string
}

// Provider is one OAuth2 identity provider.
type Provider struct {
	name        string
	oauth       *oauth2.Config
	userInfoURL string
	parse       func([]byte) (Profile, error)
}

var (
	naverEndpoint = oauth2.Endpoint{
		AuthURL:   "https://nid.naver.com/oauth2.0/authorize",
		TokenURL:  "https://nid.naver.com/oauth2.0/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	kakaoEndpoint = oauth2.Endpoint{
		AuthURL:   "https://kauth.kakao.com/oauth/authorize",
		TokenURL:  "https://kauth.kakao.com/oauth/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
)

const (
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
	naverUserInfoURL  = "https://openapi.naver.com/v1/nid/me"
	kakaoUserInfoURL  = "https://kapi.kakao.com/v2/user/me"
)

func NewGoogle(cfg ProviderConfig) *Provider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"openid", "email", "profile"}
	}
	return newProvider("google", cfg, endpoints.Google, googleUserInfoURL, parseGoogle)
}

func NewNaver(cfg ProviderConfig) *Provider {
	return newProvider("naver", cfg, naverEndpoint, naverUserInfoURL, parseNaver)
}

func NewKakao(cfg ProviderConfig) *Provider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"profile_nickname", "profile_image", "account_email"}
	}
	return newProvider("kakao", cfg, kakaoEndpoint, kakaoUserInfoURL, parseKakao)
}

func newProvider(name string, cfg ProviderConfig, endpoint oauth2.Endpoint, userInfoURL string, parse func([]byte) (Profile, error)) *Provider {
	if cfg.Endpoint.AuthURL != "" || cfg.Endpoint.TokenURL != "" {
		endpoint = cfg.Endpoint
	}
	if cfg.UserInfoURL != "" {
		userInfoURL = cfg.UserInfoURL
	}
	return &Provider{
		name: name,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     endpoint,
		},
		userInfoURL: userInfoURL,
		parse:       parse,
	}
}

func (p *Provider) Name() string {
	return p.name
}

// AuthCodeURL returns the provider consent URL for state, with an S256
// PKCE challenge derived from verifier.
func (p *Provider) AuthCodeURL(state, verifier string) string {
	return p.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// Exchange trades code for a provider token and fetches the profile.
func (p *Provider) Exchange(ctx context.Context, code, verifier string) (Profile, error) {
	tok, err := p.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return Profile{}, fmt.Errorf("exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("build profile request: %w", err)
	}
	resp, err := p.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("fetch profile: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProfileBytes))
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("profile fetch failed with status %d", resp.StatusCode)
	}

	profile, err := p.parse(body)
	if err != nil {
		return Profile{}, err
	}
	if profile.ID == "" {
		return Profile{}, errors.New("profile has no subject id")
	}
	return profile, nil
}

func parseGoogle(body []byte) (Profile, error) {
	var doc struct {
		Sub     string `json:"sub"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return Profile{}, fmt.Errorf("parse google profile: %w", err)
	}
	return Profile{ID: doc.Sub, Email: doc.Email, Nickname: doc.Name, ProfileImage: doc.Picture}, nil
}

func parseNaver(body []byte) (Profile, error) {
	var doc struct {
		Response struct {
			ID           string `json:"id"`
			Email        string `json:"email"`
			Nickname     string `json:"nickname"`
			ProfileImage string `json:"profile_image"`
		} `json:"response"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return Profile{}, fmt.Errorf("parse naver profile: %w", err)
	}
	r := doc.Response
	return Profile{ID: r.ID, Email: r.Email, Nickname: r.Nickname, ProfileImage: r.ProfileImage}, nil
}

func parseKakao(body []byte) (Profile, error) {
	var doc struct {
		ID           json.Number `json:"id"`
		KakaoAccount struct {
			Email string `json:"email"`
		} `json:"kakao_account"`
		Properties struct {
			Nickname     string `json:"nickname"`
			ProfileImage string `json:"profile_image"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return Profile{}, fmt.Errorf("parse kakao profile: %w", err)
	}
	return Profile{
		ID:           doc.ID.String(),
		Email:        doc.KakaoAccount.Email,
		Nickname:     doc.Properties.Nickname,
		ProfileImage: doc.Properties.ProfileImage,
	}, nil
}
