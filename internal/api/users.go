package api

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"audioconv/internal/logging"
	"audioconv/internal/queue"
	"audioconv/internal/services"
)

// MaxDisplayNameLength caps display names, counted in runes after
// normalisation.
const MaxDisplayNameLength = 250

// UserCreator persists new clients.
type UserCreator interface {
	CreateUser(ctx context.Context, displayName, secretToken string) (*queue.User, error)
}

// UserService registers clients.
type UserService struct {
	store  UserCreator
	logger *slog.Logger
}

// NewUserService constructs a UserService.
func NewUserService(store UserCreator, logger *slog.Logger) *UserService {
	return &UserService{store: store, logger: logging.NewComponentLogger(logger, "users")}
}

// NormalizeDisplayName applies NFC normalisation and trims surrounding
// whitespace, so visually identical names collide.
func NormalizeDisplayName(name string) string {
	return strings.TrimSpace(norm.NFC.String(name))
}

// RegisterUser creates a client with a fresh secret token. A taken name
// yields services.ErrConflict.
func (s *UserService) RegisterUser(ctx context.Context, displayName string) (*queue.User, error) {
	name := NormalizeDisplayName(displayName)
	if name == "" {
		return nil, services.Wrap(services.ErrValidation, "users", "register", "display name is required", nil)
	}
	if n := utf8.RuneCountInString(name); n > MaxDisplayNameLength {
		return nil, services.Wrap(services.ErrValidation, "users", "register",
			fmt.Sprintf("display name has %d characters, limit is %d", n, MaxDisplayNameLength), nil)
	}

	user, err := s.store.CreateUser(ctx, name, uuid.NewString())
	if err != nil {
		return nil, err
	}
	logging.WithContext(ctx, s.logger).Info("user registered",
		logging.Int64(logging.FieldUserID, user.UserID),
		logging.String(logging.FieldEventType, "user_registered"),
	)
	return user, nil
}
