package auth

import "context"

// StaticVerifier accepts any non-empty token and uses it verbatim as the
// user id. Development fallback for when no Supabase project is
// configured; never use in production.
type StaticVerifier struct{}

func (StaticVerifier) VerifyAccessToken(_ context.Context, accessToken string) (string, error) {
	return accessToken, nil
}
