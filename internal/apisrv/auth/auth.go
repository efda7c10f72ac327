// Package auth issues and checks JWT credentials for service users.
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bizense/bizense-manager/internal/auth/jwt"
	"github.com/bizense/bizense-manager/internal/auth/pwhash"
	"github.com/bizense/bizense-manager/internal/dependency"
	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
)

var ErrUnauthorized = fmt.Errorf("not authenticated")

// Server implements the auth service.
type Server struct {
	adminRepository dependency.Admin
	pwhash          *pwhash.PasswordHasher
	JwtAuth         *jwtauth.JWTAuth
	jwtTTL          time.Duration
	c               *Config
	masterHash      string
}

// Config contains the configuration for the auth server.
type Config struct {
	JWTSecret                string `mapstructure:"jwt_secret"`
	MasterPassword           string `mapstructure:"master_password"`
	PasswordHasherSaltSize   int    `mapstructure:"password_hasher_salt_size"`
	PasswordHasherIterations int    `mapstructure:"password_hasher_iterations"`
	JWTTTL                   string `mapstructure:"jwt_ttl"`
}

// New creates a new auth server.
func New(c *Config, ar dependency.Admin) (*Server, error) {
	ph, err := pwhash.New(c.PasswordHasherSaltSize, c.PasswordHasherIterations)
	if err != nil {
		return nil, err
	}
	hash, err := ph.HashPassword(c.MasterPassword)
	if err != nil {
		return nil, err
	}
	if err := ph.Validate(c.MasterPassword, hash); err != nil {
		return nil, err
	}

	ttl, err := time.ParseDuration(c.JWTTTL)
	if err != nil {
		return nil, fmt.Errorf("bad jwt ttl: %w", err)
	}

	return &Server{
		adminRepository: ar,
		pwhash:          ph,
		JwtAuth:         jwtauth.New("HS256", []byte(c.JWTSecret), nil),
		jwtTTL:          ttl,
		c:               c,
		masterHash:      hash,
	}, nil
}

// Login returns an auth token for the provided email and password. The
// token subject is the user id.
func (s *Server) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(email)

	admin, err := s.adminRepository.GetAdminByEmail(ctx, email)
	if err != nil {
		return "", ErrUnauthorized
	}
	if err := s.pwhash.Validate(password, admin.PasswordHash); err != nil {
		return "", ErrUnauthorized
	}

	return jwt.NewTokenWithSubject(s.JwtAuth, s.jwtTTL, admin.Id.String())
}

// Create creates a new user. Requires the master password.
func (s *Server) Create(ctx context.Context, masterPassword, email, password string) (string, error) {
	if err := s.pwhash.Validate(masterPassword, s.masterHash); err != nil {
		return "", ErrUnauthorized
	}

	email = strings.ToLower(email)
	pwHash, err := s.pwhash.HashPassword(password)
	if err != nil {
		return "", err
	}

	id, err := s.adminRepository.AddAdmin(ctx, email, pwHash)
	if err != nil {
		return "", err
	}
	return jwt.NewTokenWithSubject(s.JwtAuth, s.jwtTTL, id.String())
}

// Delete removes a user. Requires the master password.
func (s *Server) Delete(ctx context.Context, masterPassword, email string) error {
	if err := s.pwhash.Validate(masterPassword, s.masterHash); err != nil {
		return ErrUnauthorized
	}
	return s.adminRepository.DeleteAdmin(ctx, strings.ToLower(email))
}

// VerifyToken checks the token signature and expiry and returns the user
// id carried in the subject claim.
func (s *Server) VerifyToken(token string) (uuid.UUID, error) {
	subject, err := jwt.VerifyToken(s.JwtAuth, token)
	if err != nil {
		return uuid.Nil, ErrUnauthorized
	}
	id, err := uuid.Parse(subject)
	if err != nil {
		return uuid.Nil, ErrUnauthorized
	}
	return id, nil
}
