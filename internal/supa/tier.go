// Package supa provides the credential-tiered query channel to the
// remote data service. A Tier is selected per logical operation and
// threaded explicitly through the call graph; channels are cheap,
// immutable and never cached across operations with different subjects.
package supa

import (
	"github.com/golang-jwt/jwt/v5"

	"dealstream/pkg/model"
)

// TierKind enumerates the three access levels a downstream query can
// execute under.
type TierKind int

const (
	// TierPublic executes with the anonymous key; row-level security
	// applies.
	TierPublic TierKind = iota
	// TierAuthenticated executes with a caller-supplied subject token;
	// row-level security applies to that subject.
	TierAuthenticated
	// TierAdmin executes with the process-held service key and bypasses
	// row-level security. Never constructed from request input.
	TierAdmin
)

func (k TierKind) String() string {
	switch k {
	case TierPublic:
		return "public"
	case TierAuthenticated:
		return "authenticated"
	case TierAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// Tier is an immutable credential tier value. The subject token, when
// present, lives only as long as the channel built from it.
type Tier struct {
	kind  TierKind
	token string
}

func Public() Tier { return Tier{kind: TierPublic} }

func Authenticated(token string) Tier {
	return Tier{kind: TierAuthenticated, token: token}
}

func Admin() Tier { return Tier{kind: TierAdmin} }

func (t Tier) Kind() TierKind { return t.kind }

// Token returns the subject token for authenticated tiers; empty
// otherwise.
func (t Tier) Token() string { return t.token }

// SubjectOf extracts the subject claim from an opaque bearer token.
// The token is parsed without signature verification: issuance and
// verification belong to the identity provider, this layer only needs
// the subject to scope queries.
func SubjectOf(token string) (string, error) {
	if token == "" {
		return "", model.Authenticationf("empty bearer token")
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", model.Authenticationf("malformed bearer token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", model.Authenticationf("bearer token has no subject")
	}
	return sub, nil
}
