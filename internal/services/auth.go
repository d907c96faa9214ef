package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/userhub/apiserver/internal/auth"
	"github.com/userhub/apiserver/internal/store"
	"github.com/userhub/apiserver/types"
)

// ErrInvalidCredentials is returned for any failed login. An unknown
// email and a wrong password are logged with distinct reasons but are not
// distinguished to the caller, to avoid confirming which emails exist.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService verifies credentials and issues tokens.
type AuthService struct {
	users  UserRepository
	issuer *auth.TokenIssuer
}

func NewAuthService(users UserRepository, issuer *auth.TokenIssuer) *AuthService {
	return &AuthService{users: users, issuer: issuer}
}

// Login checks the email/password pair and returns a signed token plus
// the authenticated user.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, types.User, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.Debug("login rejected", "reason", "unknown email")
			return "", types.User{}, ErrInvalidCredentials
		}
		return "", types.User{}, err
	}

	if !auth.CheckPassword(password, user.PasswordHash) {
		slog.Debug("login rejected", "reason", "password mismatch", "user_id", user.ID)
		return "", types.User{}, ErrInvalidCredentials
	}

	token, err := s.issuer.Issue(auth.Identity{
		ID:    user.ID,
		Email: user.Email,
		Role:  user.Role,
	})
	if err != nil {
		return "", types.User{}, err
	}
	return token, user, nil
}
