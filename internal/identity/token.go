// Copyright 2026 Cloudlift Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package identity derives the operator's identity from a signed identity
// token and validates that the chosen domain points at the provisioned VM.
package identity

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/juju/errors"
)

// Claims carries the identity token fields airlift cares about.
type Claims struct {
	// Email is the operator's verified email address.
	Email string

	// Subject is the stable numeric account identifier.
	Subject string
}

// Username returns the local part of the claim's email, used to name the
// administrator account on the deployed service.
func (c Claims) Username() string {
	name, _, _ := strings.Cut(c.Email, "@")
	return name
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// DecodeClaims parses a three-part signed identity token and returns its
// claims. The signature is not verified: the token comes straight from the
// authority that minted it over an authenticated channel, and we only use
// it to learn who the operator is, not to grant anything.
func DecodeClaims(token string) (Claims, error) {
	var tc tokenClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(strings.TrimSpace(token), &tc); err != nil {
		return Claims{}, errors.Annotate(err, "parsing identity token")
	}
	if tc.Email == "" {
		return Claims{}, errors.NotValidf("identity token without email claim")
	}
	if tc.Subject == "" {
		return Claims{}, errors.NotValidf("identity token without subject claim")
	}
	return Claims{Email: tc.Email, Subject: tc.Subject}, nil
}

// TokenRunner mints an identity token for the current operator.
type TokenRunner interface {
	// Output runs the named command and returns its standard output.
	Output(name string, args ...string) ([]byte, error)
}

// FetchClaims asks the cloud SDK for an identity token and decodes it.
func FetchClaims(runner TokenRunner) (Claims, error) {
	out, err := runner.Output("gcloud", "auth", "print-identity-token")
	if err != nil {
		return Claims{}, errors.Annotate(err, "requesting identity token")
	}
	claims, err := DecodeClaims(string(out))
	return claims, errors.Trace(err)
}
