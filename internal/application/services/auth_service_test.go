package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/taskboard/kanban/internal/adapters/repository"
	"github.com/taskboard/kanban/internal/domain/entities"
	"github.com/taskboard/kanban/internal/infrastructure/logger"
	"github.com/taskboard/kanban/internal/ports"
	"github.com/taskboard/kanban/internal/testutil"
)

func TestRegister(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	result, err := env.auth.Register(ctx, ports.RegisterRequest{Email: " Dana@Example.com ", Password: testutil.Password})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if result.User.Email != "dana@example.com" {
		t.Errorf("Expected normalized email, got %s", result.User.Email)
	}
	if result.User.Username != "dana@example.com" {
		t.Errorf("Expected username to default to the email, got %s", result.User.Username)
	}
	if result.Token == "" || result.RefreshToken == "" {
		t.Error("Expected both tokens to be issued")
	}

	claims, err := env.auth.ValidateToken(result.Token)
	if err != nil {
		t.Fatalf("Expected valid access token, got %v", err)
	}
	if claims.UserID != result.User.ID {
		t.Errorf("Expected claims for user %d, got %d", result.User.ID, claims.UserID)
	}
}

func TestRegisterRejects(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	testutil.MustUser(t, env.db, "alice")

	tests := []struct {
		name  string
		req   ports.RegisterRequest
		field string
	}{
		{"duplicate email", ports.RegisterRequest{Email: "ALICE@example.com", Password: testutil.Password}, "email"},
		{"duplicate username", ports.RegisterRequest{Email: "new@example.com", Username: "alice", Password: testutil.Password}, "username"},
		{"bad email", ports.RegisterRequest{Email: "not-an-email", Password: testutil.Password}, "email"},
		{"short password", ports.RegisterRequest{Email: "a@b.io", Password: "abc12"}, "password"},
		{"numeric password", ports.RegisterRequest{Email: "a@b.io", Password: "1234567890"}, "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.auth.Register(ctx, tt.req)
			var domainErr *entities.Error
			if !errors.As(err, &domainErr) || !errors.Is(err, entities.ErrValidation) {
				t.Fatalf("Expected validation error, got %v", err)
			}
			if _, ok := domainErr.Details[tt.field]; !ok {
				t.Errorf("Expected details for %s, got %v", tt.field, domainErr.Details)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := testutil.MustUser(t, env.db, "alice")

	result, err := env.auth.Login(ctx, ports.LoginRequest{Email: "ALICE@example.com", Password: testutil.Password})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.User.ID != alice.ID {
		t.Errorf("Expected alice, got user %d", result.User.ID)
	}

	if _, err := env.auth.Login(ctx, ports.LoginRequest{Email: "alice@example.com", Password: "wrong-password"}); !errors.Is(err, entities.ErrInvalidCredentials) {
		t.Errorf("Expected invalid credentials for wrong password, got %v", err)
	}
	if _, err := env.auth.Login(ctx, ports.LoginRequest{Email: "nobody@example.com", Password: testutil.Password}); !errors.Is(err, entities.ErrInvalidCredentials) {
		t.Errorf("Expected invalid credentials for unknown email, got %v", err)
	}

	if _, err := env.users.SetActive(ctx, alice.ID, false); err != nil {
		t.Fatalf("Failed to deactivate: %v", err)
	}
	if _, err := env.auth.Login(ctx, ports.LoginRequest{Email: "alice@example.com", Password: testutil.Password}); !errors.Is(err, entities.ErrInvalidCredentials) {
		t.Errorf("Expected invalid credentials for inactive account, got %v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	testutil.MustUser(t, env.db, "alice")

	login, err := env.auth.Login(ctx, ports.LoginRequest{Email: "alice@example.com", Password: testutil.Password})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	refreshed, err := env.auth.Refresh(ctx, login.RefreshToken)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if refreshed.RefreshToken == login.RefreshToken {
		t.Error("Expected a new refresh token")
	}

	if _, err := env.auth.Refresh(ctx, login.RefreshToken); !errors.Is(err, entities.ErrAuthentication) {
		t.Errorf("Expected reused token to be rejected, got %v", err)
	}
	if _, err := env.auth.Refresh(ctx, "garbage"); !errors.Is(err, entities.ErrAuthentication) {
		t.Errorf("Expected unknown token to be rejected, got %v", err)
	}
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := testutil.MustUser(t, env.db, "alice")
	bob := testutil.MustUser(t, env.db, "bob")

	login, err := env.auth.Login(ctx, ports.LoginRequest{Email: "alice@example.com", Password: testutil.Password})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if err := env.auth.Logout(ctx, bob.ID, login.RefreshToken); !errors.Is(err, entities.ErrInvalidToken) {
		t.Errorf("Expected another user's token to be rejected, got %v", err)
	}
	if err := env.auth.Logout(ctx, alice.ID, ""); !errors.Is(err, entities.ErrInvalidToken) {
		t.Errorf("Expected empty token to be rejected, got %v", err)
	}

	if err := env.auth.Logout(ctx, alice.ID, login.RefreshToken); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := env.auth.Logout(ctx, alice.ID, login.RefreshToken); !errors.Is(err, entities.ErrInvalidToken) {
		t.Errorf("Expected revoked token to be rejected, got %v", err)
	}
	if _, err := env.auth.Refresh(ctx, login.RefreshToken); err == nil {
		t.Error("Expected refresh with a logged out token to fail")
	}
}

func TestValidateTokenRejectsForeignSignature(t *testing.T) {
	env := newTestEnv(t)

	cfg := testutil.Config().JWT
	cfg.Secret = "a-different-secret"
	other := NewAuthService(nil, nil, cfg, logger.NewNop())
	user := &entities.User{ID: 1, Email: "x@example.com"}
	token, err := other.generateAccessToken(user)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if _, err := env.auth.ValidateToken(token); !errors.Is(err, entities.ErrAuthentication) {
		t.Errorf("Expected authentication error, got %v", err)
	}
}

// staleTokenReads reports every refresh token as live, as a reader that
// raced a concurrent revoke would see it.
type staleTokenReads struct {
	ports.AuthRepository
}

func (r staleTokenReads) GetRefreshToken(ctx context.Context, tokenHash string) (*ports.RefreshToken, error) {
	token, err := r.AuthRepository.GetRefreshToken(ctx, tokenHash)
	if err != nil {
		return nil, err
	}
	token.RevokedAt = nil
	return token, nil
}

func TestConcurrentRefreshSingleWinner(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := testutil.MustUser(t, env.db, "alice")
	auth := NewAuthService(repository.NewUserRepository(env.db), staleTokenReads{repository.NewAuthRepository(env.db)}, testutil.Config().JWT, logger.NewNop())

	login, err := auth.Login(ctx, ports.LoginRequest{Email: "alice@example.com", Password: testutil.Password})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := auth.Refresh(ctx, login.RefreshToken)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, entities.ErrAuthentication):
				rejected++
			default:
				t.Errorf("Expected success or authentication error, got %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("Expected exactly 1 successful refresh, got %d", successes)
	}
	if rejected != callers-1 {
		t.Errorf("Expected %d rejected refreshes, got %d", callers-1, rejected)
	}
	if n := testutil.Count(t, env.db, "refresh_tokens", "revoked_at IS NULL"); n != 1 {
		t.Errorf("Expected 1 live refresh token, got %d", n)
	}

	if err := auth.Logout(ctx, alice.ID, login.RefreshToken); !errors.Is(err, entities.ErrInvalidToken) {
		t.Errorf("Expected logout with a spent token to be rejected, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	alice := testutil.MustUser(t, env.db, "alice")
	bob := testutil.MustUser(t, env.db, "bob")

	tokens := map[int64]string{}
	for _, u := range []*entities.User{alice, bob} {
		login, err := env.auth.Login(ctx, ports.LoginRequest{Email: u.Email, Password: testutil.Password})
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		tokens[u.ID] = login.Token
	}

	user, err := env.auth.Authenticate(ctx, tokens[alice.ID])
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if user.ID != alice.ID {
		t.Errorf("Expected user %d, got %d", alice.ID, user.ID)
	}

	if _, err := env.users.SetActive(ctx, bob.ID, false); err != nil {
		t.Fatalf("Failed to deactivate: %v", err)
	}
	if _, err := env.auth.Authenticate(ctx, tokens[bob.ID]); !errors.Is(err, entities.ErrAuthentication) {
		t.Errorf("Expected authentication error for inactive user, got %v", err)
	}

	if err := env.users.DeleteUser(ctx, alice.ID, alice.ID); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if _, err := env.auth.Authenticate(ctx, tokens[alice.ID]); !errors.Is(err, entities.ErrAuthentication) {
		t.Errorf("Expected authentication error for deleted user, got %v", err)
	}

	if _, err := env.auth.Authenticate(ctx, "not-a-jwt"); !errors.Is(err, entities.ErrAuthentication) {
		t.Errorf("Expected authentication error for a malformed token, got %v", err)
	}
}
