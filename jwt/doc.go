// Package jwt issues and verifies the provider-side session tokens handed out
// by the in-memory reference identity provider on sign-in.
package jwt
