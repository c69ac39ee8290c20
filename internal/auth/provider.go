package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Raghu963/globus-sample-data-portal/internal/model"
)

const (
	defaultAuthorizeURL = "https://auth.globus.org/v2/oauth2/authorize"
	defaultTokenURL     = "https://auth.globus.org/v2/oauth2/token"
	defaultRevokeURL    = "https://auth.globus.org/v2/oauth2/token/revoke"
	defaultLogoutURL    = "https://auth.globus.org/v2/web/logout"

	// transferScope は転送APIへの委譲アクセスを要求するスコープ。
	// openid/profileはIDトークン中のsub/preferred_usernameクレームに必要。
	transferScope = "openid profile urn:globus:auth:scope:transfer.api.globus.org:all"
)

// ProviderConfig は認可サーバープロバイダーの設定。
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// PortalName はログアウトページに表示するアプリケーション名。
	PortalName string
	// PostLogoutURL はログアウト後にユーザーを戻すURL。
	PostLogoutURL string

	// テスト用にオーバーライド可能なURL
	AuthorizeURL string
	TokenURL     string
	RevokeURL    string
	LogoutURL    string
}

// OAuthProvider は認可サーバーとのOAuth 2.0認可コードフローを実装する。
// トークンエンドポイントおよび失効エンドポイントの呼び出しはクライアント
// クレデンシャルによるBasic認証で行う。
type OAuthProvider struct {
	config     ProviderConfig
	httpClient *http.Client
}

// NewOAuthProvider はOAuthProviderを生成する。
// httpClientがnilの場合はhttp.DefaultClientを使用する。
func NewOAuthProvider(config ProviderConfig, httpClient *http.Client) *OAuthProvider {
	if config.AuthorizeURL == "" {
		config.AuthorizeURL = defaultAuthorizeURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultTokenURL
	}
	if config.RevokeURL == "" {
		config.RevokeURL = defaultRevokeURL
	}
	if config.LogoutURL == "" {
		config.LogoutURL = defaultLogoutURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OAuthProvider{config: config, httpClient: httpClient}
}

// AuthorizeURL は認可サーバーの認可URLを生成する。ネットワーク呼び出しは行わない。
// signupが真の場合、認可サーバーにアカウント作成画面を優先表示させるヒントを付与する。
func (p *OAuthProvider) AuthorizeURL(state string, signup bool) string {
	params := url.Values{
		"client_id":     {p.config.ClientID},
		"redirect_uri":  {p.config.RedirectURL},
		"response_type": {"code"},
		"scope":         {transferScope},
		"state":         {state},
		"access_type":   {"offline"},
	}
	if signup {
		params.Set("signup", "1")
	}
	return p.config.AuthorizeURL + "?" + params.Encode()
}

// tokenResponse はトークンエンドポイントのレスポンス。
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
}

// Exchange は認可コードをトークン一式に交換し、IDトークンから
// アイデンティティクレームを抽出したCredentialを返す。
// 認可コードは使い捨てのため、失敗してもリトライは行わない。
func (p *OAuthProvider) Exchange(ctx context.Context, code string) (*model.Credential, error) {
	data := url.Values{
		"code":         {code},
		"redirect_uri": {p.config.RedirectURL},
		"grant_type":   {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(p.config.ClientID, p.config.ClientSecret)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token exchange failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}

	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}

	identity, username, err := parseIdentityClaims(tokenResp.IDToken)
	if err != nil {
		return nil, err
	}

	cred := &model.Credential{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		Identity:     identity,
		Username:     username,
	}
	if tokenResp.ExpiresIn > 0 {
		cred.Expiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	}

	return cred, nil
}

// parseIdentityClaims はIDトークンからsubとpreferred_usernameを抽出する。
// IDトークンはBasic認証付きのTLSチャネル経由で直接受け取ったものであるため、
// 署名検証は行わずクレームのみをデコードする。
func parseIdentityClaims(idToken string) (identity, username string, err error) {
	if idToken == "" {
		return "", "", fmt.Errorf("missing id_token in token response")
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return "", "", fmt.Errorf("failed to parse id_token: %w", err)
	}

	identity, _ = claims["sub"].(string)
	username, _ = claims["preferred_username"].(string)

	if identity == "" {
		return "", "", fmt.Errorf("empty sub in id_token")
	}

	return identity, username, nil
}

// Revoke は指定トークンを認可サーバーで失効させる。
func (p *OAuthProvider) Revoke(ctx context.Context, token string) error {
	data := url.Values{
		"token":           {token},
		"token_type_hint": {"refresh_token"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.RevokeURL, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(p.config.ClientID, p.config.ClientSecret)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoke request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token revocation failed with status %d", resp.StatusCode)
	}

	return nil
}

// PostLogoutURL は認可サーバーのログアウトページのURLを生成する。
// ログアウト完了後にユーザーをポータルへ戻すためのパラメータを含む。
func (p *OAuthProvider) PostLogoutURL() string {
	params := url.Values{
		"client":        {p.config.ClientID},
		"redirect_uri":  {p.config.PostLogoutURL},
		"redirect_name": {p.config.PortalName},
	}
	return p.config.LogoutURL + "?" + params.Encode()
}

// compile-time interface check
var _ Provider = (*OAuthProvider)(nil)
