package services

import (
	"context"
	"testing"
	"time"

	authrepo "github.com/coursepilot/backend/internal/data/repos/auth"
	userrepo "github.com/coursepilot/backend/internal/data/repos/user"
	"github.com/coursepilot/backend/internal/data/repos/testutil"
	"github.com/coursepilot/backend/internal/platform/apierr"
	"github.com/coursepilot/backend/internal/requestdata"
)

func newAuthFixture(t *testing.T) AuthService {
	t.Helper()
	db := testutil.SQLite(t)
	log := testutil.Logger(t)
	svc, err := NewAuthService(
		db, log,
		userrepo.NewUserRepo(db, log),
		authrepo.NewUserTokenRepo(db, log),
		"test-secret",
		time.Hour,
		24*time.Hour,
	)
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	return svc
}

func TestAuthRegisterAndLogin(t *testing.T) {
	svc := newAuthFixture(t)
	ctx := context.Background()

	user, pair, err := svc.Register(ctx, RegisterInput{
		Email:     "Alex@Example.com",
		Password:  "hunter2hunter2",
		FirstName: "Alex",
		LastName:  "Kim",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Email != "alex@example.com" {
		t.Fatalf("email must be normalized, got %q", user.Email)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("Register must mint both tokens")
	}

	if _, _, err := svc.Register(ctx, RegisterInput{Email: "alex@example.com", Password: "hunter2hunter2"}); apierr.CodeOf(err) != apierr.CodeValidation {
		t.Fatalf("duplicate email: want %s got %v", apierr.CodeValidation, err)
	}

	if _, _, err := svc.Login(ctx, "alex@example.com", "wrong-password"); apierr.CodeOf(err) != apierr.CodeUnauthorized {
		t.Fatalf("bad password: want %s got %v", apierr.CodeUnauthorized, err)
	}
	loggedIn, loginPair, err := svc.Login(ctx, "alex@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if loggedIn.ID != user.ID || loginPair.AccessToken == "" {
		t.Fatalf("Login: user=%v pair=%v", loggedIn.ID, loginPair)
	}
}

func TestAuthRegisterValidation(t *testing.T) {
	svc := newAuthFixture(t)
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, RegisterInput{Email: "not-an-email", Password: "hunter2hunter2"}); apierr.CodeOf(err) != apierr.CodeValidation {
		t.Fatalf("bad email: want %s got %v", apierr.CodeValidation, err)
	}
	if _, _, err := svc.Register(ctx, RegisterInput{Email: "ok@example.com", Password: "short"}); apierr.CodeOf(err) != apierr.CodeValidation {
		t.Fatalf("short password: want %s got %v", apierr.CodeValidation, err)
	}
}

func TestAuthSetContextFromToken(t *testing.T) {
	svc := newAuthFixture(t)
	ctx := context.Background()

	user, pair, err := svc.Register(ctx, RegisterInput{Email: "ctx@example.com", Password: "hunter2hunter2"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	authed, err := svc.SetContextFromToken(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("SetContextFromToken: %v", err)
	}
	rd := requestdata.GetRequestData(authed)
	if rd == nil || rd.UserID != user.ID {
		t.Fatalf("request data: want user %s got %+v", user.ID, rd)
	}

	if _, err := svc.SetContextFromToken(ctx, "garbage.token.here"); apierr.CodeOf(err) != apierr.CodeUnauthorized {
		t.Fatalf("garbage token: want %s got %v", apierr.CodeUnauthorized, err)
	}
}

func TestAuthRefreshRotatesTokens(t *testing.T) {
	svc := newAuthFixture(t)
	ctx := context.Background()

	_, pair, err := svc.Register(ctx, RegisterInput{Email: "rotate@example.com", Password: "hunter2hunter2"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	fresh, err := svc.RefreshTokens(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshTokens: %v", err)
	}
	if fresh.AccessToken == pair.AccessToken || fresh.RefreshToken == pair.RefreshToken {
		t.Fatalf("refresh must rotate both tokens")
	}

	// The used refresh token is burned.
	if _, err := svc.RefreshTokens(ctx, pair.RefreshToken); apierr.CodeOf(err) != apierr.CodeUnauthorized {
		t.Fatalf("reused refresh token: want %s got %v", apierr.CodeUnauthorized, err)
	}
}

func TestAuthLogoutRevokesAccess(t *testing.T) {
	svc := newAuthFixture(t)
	ctx := context.Background()

	_, pair, err := svc.Register(ctx, RegisterInput{Email: "logout@example.com", Password: "hunter2hunter2"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := svc.Logout(ctx, pair.AccessToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := svc.SetContextFromToken(ctx, pair.AccessToken); apierr.CodeOf(err) != apierr.CodeUnauthorized {
		t.Fatalf("revoked token: want %s got %v", apierr.CodeUnauthorized, err)
	}

	// Logging out twice is a no-op.
	if err := svc.Logout(ctx, pair.AccessToken); err != nil {
		t.Fatalf("second Logout: %v", err)
	}
}
