package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestIssuer_RoundTrip(t *testing.T) {
	iss := NewIssuer(testSecret, "dispatch", time.Hour)
	tok, exp, err := iss.Issue(Identity{UserID: 12, Username: "dispatch1", Role: RoleDispatcher})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if time.Until(exp) < 59*time.Minute {
		t.Errorf("expected ~1h expiry, got %v", exp)
	}

	claims, err := iss.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "12" || claims.Username != "dispatch1" || claims.Role != RoleDispatcher {
		t.Errorf("unexpected claims %+v", claims)
	}
	if claims.ResponderID != 0 {
		t.Errorf("expected no responder id, got %d", claims.ResponderID)
	}
}

func TestIssuer_Expired(t *testing.T) {
	iss := NewIssuer(testSecret, "dispatch", time.Minute)
	iss.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, _, err := iss.Issue(Identity{UserID: 1, Role: RoleResponder})
	if err != nil {
		t.Fatal(err)
	}

	iss.now = time.Now
	if _, err := iss.Parse(tok); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestIssuer_WrongIssuer(t *testing.T) {
	tok, _, err := NewIssuer(testSecret, "someone-else", time.Hour).Issue(Identity{UserID: 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewIssuer(testSecret, "dispatch", time.Hour).Parse(tok); err == nil {
		t.Fatal("expected issuer mismatch to be rejected")
	}
}

func TestIssuer_RejectsNoneAlg(t *testing.T) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: RoleAdmin,
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewIssuer(testSecret, "", time.Hour).Parse(tok); err == nil {
		t.Fatal("expected alg=none to be rejected")
	}
}

func TestIssuer_NoKey(t *testing.T) {
	_, _, err := NewIssuer("", "", time.Hour).Issue(Identity{UserID: 1})
	if err == nil || !strings.Contains(err.Error(), "signing key") {
		t.Fatalf("expected missing key error, got %v", err)
	}
}
