// Package auth verifies caller identity for trade endpoints.
//
// Verification is delegated to Supabase's GoTrue API: the bearer token
// from the request is checked against /auth/v1/user and the verified
// user id is placed in the request context. Handlers receive a
// pre-verified identity and never touch session state themselves.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Verifier turns a bearer token into a verified user id.
type Verifier interface {
	VerifyAccessToken(ctx context.Context, accessToken string) (string, error)
}

// SupabaseVerifier verifies access tokens against a Supabase project.
type SupabaseVerifier struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
}

// NewSupabaseVerifier creates a verifier for the given Supabase project
// URL and anon key.
func NewSupabaseVerifier(baseURL, anonKey string) *SupabaseVerifier {
	return &SupabaseVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type supabaseUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// VerifyAccessToken calls GET /auth/v1/user with the token and returns
// the authenticated user's id.
func (v *SupabaseVerifier) VerifyAccessToken(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("apikey", v.anonKey)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("verify token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("verify token status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var user supabaseUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return "", fmt.Errorf("decode user: %w", err)
	}
	if user.ID == "" {
		return "", fmt.Errorf("verify token: empty user id")
	}
	return user.ID, nil
}
