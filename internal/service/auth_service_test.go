package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"timelogger/backend/internal/clock"
	"timelogger/backend/internal/identity"
)

type stubVerifier struct {
	who identity.Identity
	err error
}

func (s stubVerifier) Verify(context.Context, string) (identity.Identity, error) {
	return s.who, s.err
}

func setupAuthUsers(t *testing.T) *UserService {
	t.Helper()
	s := setupTestStore(t)
	clk := clock.NewManual(t0)
	engine := NewTimeLoggerService(s, clk, zerolog.Nop())
	return NewUserService(s, engine, nil, clk, zerolog.Nop())
}

func TestParseTokenRoundTrip(t *testing.T) {
	auth := &AuthService{jwtSecret: []byte("secret"), tokenTTL: time.Hour}

	token, apiErr := auth.issueToken(identity.Identity{UID: "u1", DisplayName: "Ada", Provider: identity.ProviderAnonymous})
	if apiErr != nil {
		t.Fatalf("issueToken: %v", apiErr)
	}
	session, apiErr := auth.ParseToken(token)
	if apiErr != nil {
		t.Fatalf("ParseToken: %v", apiErr)
	}
	if session.UserID != "u1" || session.DisplayName != "Ada" {
		t.Fatalf("unexpected session: %+v", session)
	}

	other := &AuthService{jwtSecret: []byte("other"), tokenTTL: time.Hour}
	if _, apiErr := other.ParseToken(token); apiErr == nil || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for foreign signature, got %v", apiErr)
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	auth := &AuthService{jwtSecret: []byte("secret"), tokenTTL: -time.Minute}
	token, apiErr := auth.issueToken(identity.Identity{UID: "u1"})
	if apiErr != nil {
		t.Fatalf("issueToken: %v", apiErr)
	}
	if _, apiErr := auth.ParseToken(token); apiErr == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestFirebaseSignIn(t *testing.T) {
	users := setupAuthUsers(t)
	auth := NewAuthService(nil, users, stubVerifier{who: identity.Identity{
		UID:         "fb-ada",
		DisplayName: "Ada",
		Provider:    identity.ProviderFirebase,
	}}, "secret", time.Hour, zerolog.Nop())

	result, apiErr := auth.Firebase(context.Background(), "id-token")
	if apiErr != nil {
		t.Fatalf("Firebase: %v", apiErr)
	}
	if result.Identity.UID != "fb-ada" || result.Profile.Name != "Ada" || result.LandingLoggerID == "" {
		t.Fatalf("unexpected result: %+v", result)
	}

	session, apiErr := auth.ParseToken(result.Token)
	if apiErr != nil || session.UserID != "fb-ada" {
		t.Fatalf("token must carry the firebase uid: %+v (%v)", session, apiErr)
	}
}

func TestFirebaseSignInErrors(t *testing.T) {
	users := setupAuthUsers(t)

	disabled := NewAuthService(nil, users, nil, "secret", time.Hour, zerolog.Nop())
	if _, apiErr := disabled.Firebase(context.Background(), "id-token"); apiErr == nil || apiErr.Status != http.StatusNotImplemented {
		t.Fatalf("expected 501 without a verifier, got %v", apiErr)
	}

	rejecting := NewAuthService(nil, users, stubVerifier{err: errors.New("expired")}, "secret", time.Hour, zerolog.Nop())
	if _, apiErr := rejecting.Firebase(context.Background(), "id-token"); apiErr == nil || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a rejected token, got %v", apiErr)
	}
	if _, apiErr := rejecting.Firebase(context.Background(), " "); apiErr == nil || apiErr.Status != http.StatusBadRequest {
		t.Fatalf("expected 400 for an empty token, got %v", apiErr)
	}
}

func TestAnonymousSignInGetsFreshIdentity(t *testing.T) {
	users := setupAuthUsers(t)
	auth := NewAuthService(nil, users, nil, "secret", time.Hour, zerolog.Nop())

	first, apiErr := auth.Anonymous(context.Background())
	if apiErr != nil {
		t.Fatalf("Anonymous: %v", apiErr)
	}
	second, apiErr := auth.Anonymous(context.Background())
	if apiErr != nil {
		t.Fatalf("Anonymous: %v", apiErr)
	}
	if first.Identity.UID == second.Identity.UID {
		t.Fatal("anonymous sign-ins must not share an identity")
	}
	if first.Profile.Name != "" || len(first.Profile.TimeLoggers) != 1 {
		t.Fatalf("unexpected anonymous profile: %+v", first.Profile)
	}
}
