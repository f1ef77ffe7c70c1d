package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ers/dispatch/internal/platform/auth"
	"github.com/ers/dispatch/internal/platform/db"
)

// TokenIssuer signs session tokens for authenticated users.
type TokenIssuer interface {
	Issue(id auth.Identity) (string, time.Time, error)
}

type Service struct {
	repo   Repository
	tx     db.TxRunner
	tokens TokenIssuer
	logger zerolog.Logger
}

func NewService(repo Repository, tx db.TxRunner, tokens TokenIssuer, logger zerolog.Logger) *Service {
	return &Service{repo: repo, tx: tx, tokens: tokens, logger: logger.With().Str("domain", "account").Logger()}
}

// Register creates a responder login and its responder profile atomically.
// A username already present in either table yields ErrUsernameTaken and
// leaves nothing behind.
func (s *Service) Register(ctx context.Context, r Registration) (*Registered, error) {
	r.Username = strings.TrimSpace(r.Username)
	r.Name = strings.TrimSpace(r.Name)
	r.ContactNumber = strings.TrimSpace(r.ContactNumber)
	if r.Username == "" || r.Password == "" || r.Name == "" || r.ContactNumber == "" {
		return nil, fmt.Errorf("%w: username, password, name and contact_number are required", ErrValidation)
	}

	hash, err := auth.HashPassword(r.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	out := &Registered{Username: r.Username, Name: r.Name, ContactNumber: r.ContactNumber}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		u := &User{Username: r.Username, PasswordHash: hash, Name: r.Name, Role: auth.RoleResponder}
		ok, err := s.repo.InsertUser(ctx, u)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUsernameTaken
		}

		rid, ok, err := s.repo.InsertResponder(ctx, u.ID, r.Username, r.Name, r.ContactNumber)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUsernameTaken
		}
		out.UserID, out.ResponderID = u.ID, rid
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}

	s.logger.Info().Int64("user_id", out.UserID).Int64("responder_id", out.ResponderID).Str("username", out.Username).Msg("responder registered")
	return out, nil
}

// Authenticate checks the credentials and issues a session token.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*Session, error) {
	u, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, classify(err)
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	id := auth.Identity{UserID: u.ID, Username: u.Username, Role: u.Role}
	if u.ResponderID != nil {
		id.ResponderID = *u.ResponderID
	}
	token, exp, err := s.tokens.Issue(id)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Int64("user_id", u.ID).Str("role", u.Role).Msg("login")
	return &Session{
		ID:          u.ID,
		Username:    u.Username,
		Name:        u.Name,
		Role:        u.Role,
		ResponderID: u.ResponderID,
		Token:       token,
		ExpiresAt:   exp,
	}, nil
}

// CreateUser provisions an account with any role. Responders also get a
// profile so they can be assigned alerts.
func (s *Service) CreateUser(ctx context.Context, username, password, name, role string) (*User, error) {
	username, name = strings.TrimSpace(username), strings.TrimSpace(name)
	if username == "" || password == "" || name == "" {
		return nil, fmt.Errorf("%w: username, password and name are required", ErrValidation)
	}
	if !auth.ValidRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	u := &User{Username: username, PasswordHash: hash, Name: name, Role: role}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		ok, err := s.repo.InsertUser(ctx, u)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUsernameTaken
		}
		if role != auth.RoleResponder {
			return nil
		}
		rid, ok, err := s.repo.InsertResponder(ctx, u.ID, username, name, "")
		if err != nil {
			return err
		}
		if !ok {
			return ErrUsernameTaken
		}
		u.ResponderID = &rid
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}

	s.logger.Info().Int64("user_id", u.ID).Str("username", username).Str("role", role).Msg("user created")
	return u, nil
}

func classify(err error) error {
	if db.IsUnavailable(err) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
