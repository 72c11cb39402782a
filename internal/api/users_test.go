package api_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"audioconv/internal/api"
	"audioconv/internal/logging"
	"audioconv/internal/services"
	"audioconv/internal/testsupport"
)

func TestRegisterUserIssuesUniqueCredentials(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	svc := api.NewUserService(store, logging.NewNop())
	ctx := context.Background()

	first, err := svc.RegisterUser(ctx, "alice")
	if err != nil {
		t.Fatalf("RegisterUser alice: %v", err)
	}
	second, err := svc.RegisterUser(ctx, "bob")
	if err != nil {
		t.Fatalf("RegisterUser bob: %v", err)
	}
	if first.UserID == second.UserID {
		t.Fatalf("user ids collide: %d", first.UserID)
	}
	if first.SecretToken == "" || first.SecretToken == second.SecretToken {
		t.Fatalf("tokens must be unique and non-empty: %q %q", first.SecretToken, second.SecretToken)
	}
}

func TestRegisterUserRejectsTakenName(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	svc := api.NewUserService(store, logging.NewNop())
	ctx := context.Background()

	if _, err := svc.RegisterUser(ctx, "Zoé"); err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	// Decomposed form with surrounding whitespace normalises to the same name.
	if _, err := svc.RegisterUser(ctx, "  Zoe\u0301 "); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRegisterUserValidatesName(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	svc := api.NewUserService(store, logging.NewNop())
	ctx := context.Background()

	for _, name := range []string{"", "   ", strings.Repeat("n", api.MaxDisplayNameLength+1)} {
		if _, err := svc.RegisterUser(ctx, name); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("RegisterUser(%d chars): expected validation error, got %v", len(name), err)
		}
	}
	longest := strings.Repeat("é", api.MaxDisplayNameLength)
	if _, err := svc.RegisterUser(ctx, longest); err != nil {
		t.Fatalf("name at the limit counted in runes should pass: %v", err)
	}
}
