package social

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// CodeFlowConfig describes an OAuth2 authorization-code endpoint set.
type CodeFlowConfig struct {
	Provider     string
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scopes       []string

	AuthURL     string
	TokenURL    string
	UserInfoURL string

	// AuthParams are appended to every authorization URL
	AuthParams url.Values
	// BasicAuth sends client credentials in the Authorization header
	// instead of the form body.
	BasicAuth bool
	// ScopeSeparator joins scopes, defaults to a single space
	ScopeSeparator string

	HTTPClient *http.Client
}

// CodeFlow implements the provider-independent parts of SocialProvider
type CodeFlow struct {
	config     CodeFlowConfig
	httpClient *http.Client
}

// NewCodeFlow creates a code flow client. Providers embed it.
func NewCodeFlow(cfg CodeFlowConfig) *CodeFlow {
	if cfg.ScopeSeparator == "" {
		cfg.ScopeSeparator = " "
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &CodeFlow{config: cfg, httpClient: client}
}

// Config returns the resolved configuration
func (f *CodeFlow) Config() CodeFlowConfig {
	return f.config
}

// AuthCodeURL implements SocialProvider.
func (f *CodeFlow) AuthCodeURL(state string, opts ...AuthCodeOption) string {
	cfg := NewAuthRequest(f.config.Scopes, opts...)

	params := url.Values{
		"client_id":     {f.config.ClientID},
		"redirect_uri":  {f.config.CallbackURL},
		"response_type": {"code"},
		"state":         {state},
	}
	if len(cfg.Scopes) > 0 {
		params.Set("scope", strings.Join(cfg.Scopes, f.config.ScopeSeparator))
	}
	for key, values := range f.config.AuthParams {
		for _, v := range values {
			params.Add(key, v)
		}
	}

	if cfg.CodeChallenge != "" {
		params.Set("code_challenge", cfg.CodeChallenge)
		params.Set("code_challenge_method", cfg.ChallengeMethod)
	}

	if cfg.Prompt != "" {
		params.Set("prompt", cfg.Prompt)
	}

	sep := "?"
	if strings.Contains(f.config.AuthURL, "?") {
		sep = "&"
	}
	return f.config.AuthURL + sep + params.Encode()
}

// Exchange implements SocialProvider.
func (f *CodeFlow) Exchange(ctx context.Context, code string, opts ...ExchangeOption) (*Token, error) {
	cfg := NewExchangeRequest(opts...)

	data := url.Values{
		"code":         {code},
		"redirect_uri": {f.config.CallbackURL},
		"grant_type":   {"authorization_code"},
		"client_id":    {f.config.ClientID},
	}
	if !f.config.BasicAuth {
		data.Set("client_secret", f.config.ClientSecret)
	}
	if cfg.CodeVerifier != "" {
		data.Set("code_verifier", cfg.CodeVerifier)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if f.config.BasicAuth {
		req.SetBasicAuth(url.QueryEscape(f.config.ClientID), url.QueryEscape(f.config.ClientSecret))
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, f.providerError("exchange", 0, "", "", err, nil)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, f.providerError("exchange", resp.StatusCode, "invalid_response", "failed to decode token response", err, nil)
	}

	if resp.StatusCode != http.StatusOK || tokenResp.Error != "" {
		code, desc, raw := tokenResp.Error, tokenResp.ErrorDesc, tokenResp.errorMetadata()
		if code == "" && desc == "" {
			code, desc, raw = parseProviderError(body)
		}
		return nil, f.providerError("exchange", resp.StatusCode, code, desc, nil, raw)
	}
	if tokenResp.AccessToken == "" {
		return nil, f.providerError("exchange", resp.StatusCode, "missing_access_token", "missing access token", nil, nil)
	}

	expiresAt := time.Time{}
	if tokenResp.ExpiresIn > 0 {
		expiresAt = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	}

	return &Token{
		AccessToken:  tokenResp.AccessToken,
		TokenType:    tokenResp.TokenType,
		RefreshToken: tokenResp.RefreshToken,
		ExpiresAt:    expiresAt,
		Scopes:       splitScopes(tokenResp.Scope),
	}, nil
}

// UserInfo implements SocialProvider.
func (f *CodeFlow) UserInfo(ctx context.Context, token *Token) ([]byte, error) {
	if token == nil || token.AccessToken == "" {
		return nil, f.providerError("user_info", 0, "missing_access_token", "missing access token", nil, nil)
	}
	if !token.Usable(time.Now()) {
		return nil, f.providerError("user_info", 0, "expired_access_token", "access token expired", nil, nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.config.UserInfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, f.providerError("user_info", 0, "", "", err, nil)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		code, description, raw := parseProviderError(body)
		return nil, f.providerError("user_info", resp.StatusCode, code, description, nil, raw)
	}

	return body, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	Error        string `json:"error"`
	ErrorDesc    string `json:"error_description"`
}

func (r tokenResponse) errorMetadata() map[string]any {
	meta := map[string]any{}
	if r.Error != "" {
		meta["error"] = r.Error
	}
	if r.ErrorDesc != "" {
		meta["error_description"] = r.ErrorDesc
	}
	return meta
}

func splitScopes(scopes string) []string {
	if scopes == "" {
		return nil
	}
	return strings.FieldsFunc(scopes, func(r rune) bool {
		return r == ' ' || r == ','
	})
}
