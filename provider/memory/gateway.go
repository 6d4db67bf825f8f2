package memory

import (
	"context"
	"crypto/rand"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/accountflow"
	"github.com/MrEthical07/accountflow/jwt"
	"github.com/MrEthical07/accountflow/password"
)

var errUnknownAccount = errors.New("no account for email")

type account struct {
	id           accountflow.IdentityID
	email        string
	passwordHash string
}

// Gateway is an in-process accountflow.AuthGateway and
// accountflow.SessionTerminator. Credentials are held as Argon2id hashes and
// a successful sign-in issues a session token.
//
// Every provider error is an *accountflow.AuthError. Duplicate registration,
// unknown email and wrong password all report AuthInvalidCredentials.
type Gateway struct {
	hasher *password.Hasher
	tokens *jwt.Manager
	newID  func() accountflow.IdentityID

	mu       sync.Mutex
	accounts map[string]account
	session  string
	claims   *jwt.SessionClaims
	faults   faults

	createCalls  atomic.Int64
	signInCalls  atomic.Int64
	signOutCalls atomic.Int64
}

type GatewayOption func(*Gateway)

// WithHasher replaces the default minimum-cost hasher.
func WithHasher(h *password.Hasher) GatewayOption {
	return func(g *Gateway) { g.hasher = h }
}

// WithTokenManager replaces the default HS256 manager with a random secret.
func WithTokenManager(m *jwt.Manager) GatewayOption {
	return func(g *Gateway) { g.tokens = m }
}

// WithIDs makes the gateway hand out ids in order, then fall back to uuids.
func WithIDs(ids ...string) GatewayOption {
	return func(g *Gateway) {
		var mu sync.Mutex
		queue := append([]string(nil), ids...)
		g.newID = func() accountflow.IdentityID {
			mu.Lock()
			defer mu.Unlock()
			if len(queue) == 0 {
				return accountflow.IdentityID(uuid.NewString())
			}
			id := queue[0]
			queue = queue[1:]
			return accountflow.IdentityID(id)
		}
	}
}

func NewGateway(opts ...GatewayOption) (*Gateway, error) {
	g := &Gateway{
		accounts: make(map[string]account),
		newID:    func() accountflow.IdentityID { return accountflow.IdentityID(uuid.NewString()) },
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.hasher == nil {
		h, err := password.NewHasher(password.MinimumConfig())
		if err != nil {
			return nil, err
		}
		g.hasher = h
	}
	if g.tokens == nil {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
		m, err := jwt.NewManager(jwt.Config{
			TTL:           time.Hour,
			SigningMethod: jwt.MethodHS256,
			PrivateKey:    secret,
			Issuer:        "accountflow-memory",
		})
		if err != nil {
			return nil, err
		}
		g.tokens = m
	}
	return g, nil
}

func (g *Gateway) CreateAccount(ctx context.Context, email, pass string) (accountflow.IdentityID, error) {
	g.createCalls.Add(1)
	if err := g.faults.wait(ctx, opCreate); err != nil {
		return "", err
	}

	key := emailKey(email)
	g.mu.Lock()
	_, exists := g.accounts[key]
	g.mu.Unlock()
	if exists {
		return "", accountflow.NewAuthError(accountflow.AuthInvalidCredentials, errors.New("email already registered"))
	}

	hash, err := g.hasher.Hash(pass)
	if err != nil {
		return "", accountflow.NewAuthError(accountflow.AuthDefault, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.accounts[key]; exists {
		return "", accountflow.NewAuthError(accountflow.AuthInvalidCredentials, errors.New("email already registered"))
	}
	acc := account{id: g.newID(), email: email, passwordHash: hash}
	g.accounts[key] = acc
	return acc.id, nil
}

func (g *Gateway) SignIn(ctx context.Context, email, pass string) (accountflow.IdentityID, error) {
	g.signInCalls.Add(1)
	if err := g.faults.wait(ctx, opSignIn); err != nil {
		return "", err
	}

	g.mu.Lock()
	acc, ok := g.accounts[emailKey(email)]
	g.mu.Unlock()
	if !ok {
		return "", accountflow.NewAuthError(accountflow.AuthInvalidCredentials, errUnknownAccount)
	}

	match, err := g.hasher.Verify(pass, acc.passwordHash)
	if err != nil {
		return "", accountflow.NewAuthError(accountflow.AuthDefault, err)
	}
	if !match {
		return "", accountflow.ErrInvalidCredentials
	}

	token, claims, err := g.tokens.Issue(acc.id.String(), acc.email)
	if err != nil {
		return "", accountflow.NewAuthError(accountflow.AuthDefault, err)
	}

	g.mu.Lock()
	g.session = token
	g.claims = claims
	g.mu.Unlock()
	return acc.id, nil
}

// SignOut clears the current session. Signing out without a session is a no-op.
func (g *Gateway) SignOut(ctx context.Context) error {
	g.signOutCalls.Add(1)
	if err := g.faults.wait(ctx, opSignOut); err != nil {
		return err
	}
	g.mu.Lock()
	g.session = ""
	g.claims = nil
	g.mu.Unlock()
	return nil
}

// CurrentSession returns the identity of the signed-in account after
// verifying the held session token.
func (g *Gateway) CurrentSession() (accountflow.IdentityID, bool) {
	g.mu.Lock()
	token := g.session
	g.mu.Unlock()
	if token == "" {
		return "", false
	}
	claims, err := g.tokens.Parse(token)
	if err != nil {
		return "", false
	}
	return accountflow.IdentityID(claims.IdentityID()), true
}

// SessionToken returns the raw token of the current session, if any.
func (g *Gateway) SessionToken() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session
}

// Accounts returns the number of registered identities.
func (g *Gateway) Accounts() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.accounts)
}

func (g *Gateway) CreateCalls() int64  { return g.createCalls.Load() }
func (g *Gateway) SignInCalls() int64  { return g.signInCalls.Load() }
func (g *Gateway) SignOutCalls() int64 { return g.signOutCalls.Load() }

// FailCreate makes the next n CreateAccount calls return err. n < 0 fails
// every call until Reset.
func (g *Gateway) FailCreate(err error, n int) { g.faults.set(opCreate, err, n) }

func (g *Gateway) FailSignIn(err error, n int) { g.faults.set(opSignIn, err, n) }

func (g *Gateway) FailSignOut(err error, n int) { g.faults.set(opSignOut, err, n) }

// Hold makes calls block until the returned release func is called or the
// call's context ends.
func (g *Gateway) Hold() (release func()) { return g.faults.hold() }

// Reset clears injected faults and holds.
func (g *Gateway) Reset() { g.faults.reset() }

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
