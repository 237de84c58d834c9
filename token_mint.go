package auth

import (
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// TokenPair is a freshly minted session.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"-"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"-"`
}

// MintSessionPair issues an access and a refresh token for user. It does not
// persist anything; callers store the refresh token.
func MintSessionPair(tokens TokenService, user *User) (*TokenPair, error) {
	if tokens == nil {
		return nil, goerrors.New("token service is required", goerrors.CategoryInternal)
	}
	if user == nil {
		return nil, goerrors.New("account is required to mint a session", goerrors.CategoryInternal)
	}

	id := user.ID.String()
	access, accessExp, err := tokens.IssueAccessToken(id, TokenProfile{
		Email:    user.Email,
		Username: user.Username,
	})
	if err != nil {
		return nil, passthrough(err, "failed to issue access token")
	}

	refresh, refreshExp, err := tokens.IssueRefreshToken(id)
	if err != nil {
		return nil, passthrough(err, "failed to issue refresh token")
	}

	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}
