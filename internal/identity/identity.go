package identity

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/google/uuid"
)

const (
	ProviderPassword  = "password"
	ProviderAnonymous = "anonymous"
	ProviderFirebase  = "firebase"
)

var ErrInvalidToken = errors.New("invalid identity token")

// Identity is who signed in, as reported by an identity provider.
type Identity struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	Provider    string `json:"provider"`
}

// Anonymous returns a fresh identity with no display name.
func Anonymous() Identity {
	return Identity{UID: uuid.NewString(), Provider: ProviderAnonymous}
}

// TokenVerifier checks a Firebase ID token. *auth.Client satisfies it.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

type FirebaseVerifier struct {
	verifier TokenVerifier
}

func NewFirebaseVerifier(ctx context.Context, app *firebase.App) (*FirebaseVerifier, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get auth client: %w", err)
	}
	return &FirebaseVerifier{verifier: client}, nil
}

func NewFirebaseVerifierWith(verifier TokenVerifier) *FirebaseVerifier {
	return &FirebaseVerifier{verifier: verifier}
}

// Verify resolves an ID token to an identity. Anonymous Firebase users carry
// no name claim and get an empty display name.
func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (Identity, error) {
	if idToken == "" {
		return Identity{}, ErrInvalidToken
	}
	token, err := v.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if token.UID == "" {
		return Identity{}, ErrInvalidToken
	}

	name, _ := token.Claims["name"].(string)
	return Identity{UID: token.UID, DisplayName: name, Provider: ProviderFirebase}, nil
}
