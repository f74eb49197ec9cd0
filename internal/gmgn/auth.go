package gmgn

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// SignInValidity is how long a signed login message claims to be valid.
const SignInValidity = 30 * 24 * time.Hour

const signInTimeLayout = "2006-01-02T15:04:05.000000"

// BuildSignInMessage builds the canonical sign-in message for address and nonce.
func BuildSignInMessage(address, nonce string, issuedAt time.Time) string {
	issued := issuedAt.UTC()
	expires := issued.Add(SignInValidity)
	return fmt.Sprintf(
		"gmgn.ai wants you to sign in with your Solana account:\n%s\n\n"+
			"wallet_sign_statement\nURI: https://gmgn.ai\nVersion: 1\nChain ID: 900\n"+
			"Nonce: %s\nIssued At: %sZ\nExpiration Time: %sZ",
		address, nonce, issued.Format(signInTimeLayout), expires.Format(signInTimeLayout),
	)
}

// LoginNonce requests a single-use login nonce for address.
func (c *Client) LoginNonce(ctx context.Context, address string) (string, error) {
	var data struct {
		Nonce string `json:"nonce"`
	}
	err := c.do(ctx, request{
		name:   "login_nonce",
		method: http.MethodGet,
		path:   "/defi/auth/v1/login_nonce",
		query:  url.Values{"address": {address}},
	}, &data)
	if err != nil {
		return "", err
	}
	if data.Nonce == "" {
		return "", ErrEmptyNonce
	}
	return data.Nonce, nil
}

// Login exchanges a signed message for a bearer access token.
func (c *Client) Login(ctx context.Context, message, signature string) (string, error) {
	var data struct {
		AccessToken string `json:"access_token"`
	}
	err := c.do(ctx, request{
		name:   "login",
		method: http.MethodPost,
		path:   "/defi/auth/v1/login",
		body: map[string]string{
			"message":   message,
			"signature": signature,
		},
	}, &data)
	if err != nil {
		return "", err
	}
	if data.AccessToken == "" {
		return "", ErrNoAccessToken
	}
	return data.AccessToken, nil
}

// StreamURL builds the authenticated activity stream URL.
func StreamURL(wsBase, token string) string {
	return wsBase + "?tk=" + url.QueryEscape(token)
}
