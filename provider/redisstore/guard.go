package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MrEthical07/accountflow"
	"github.com/MrEthical07/accountflow/internal/rate"
)

// ErrTooManyAttempts is the cause of the AuthDefault error SignInGuard
// returns once an email has used its failure budget.
var ErrTooManyAttempts = errors.New("too many failed sign-in attempts")

// GuardConfig bounds failed sign-ins per email.
type GuardConfig struct {
	MaxAttempts int
	Window      time.Duration
	// Logger receives counter bookkeeping failures. Nil discards them.
	Logger *zap.Logger
}

// SignInGuard wraps an AuthGateway and refuses SignIn for an email after
// MaxAttempts invalid-credential failures inside Window. A successful sign-in
// clears the counter. CreateAccount is not guarded.
//
// Each SignIn takes one attempt from the budget before the inner call, so
// concurrent attempts cannot overshoot it. The attempt is given back unless
// the inner gateway reported invalid credentials.
//
// Counter keys hash the normalized email. When Redis cannot be reached the
// guard fails closed with AuthDefault; bookkeeping failures after the inner
// call are logged and do not change its outcome.
type SignInGuard struct {
	inner  accountflow.AuthGateway
	window *rate.Window
	logger *zap.Logger
}

func NewSignInGuard(inner accountflow.AuthGateway, rdb redis.UniversalClient, prefix string, cfg GuardConfig) (*SignInGuard, error) {
	if inner == nil {
		return nil, errors.New("redisstore: guarded gateway is nil")
	}
	if prefix == "" {
		prefix = defaultPrefix
	}
	w, err := rate.New(rdb, rate.Config{
		Prefix:      prefix + ":signin",
		MaxAttempts: cfg.MaxAttempts,
		Window:      cfg.Window,
	})
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SignInGuard{inner: inner, window: w, logger: logger.Named("signin_guard")}, nil
}

func (g *SignInGuard) CreateAccount(ctx context.Context, email, password string) (accountflow.IdentityID, error) {
	return g.inner.CreateAccount(ctx, email, password)
}

func (g *SignInGuard) SignIn(ctx context.Context, email, password string) (accountflow.IdentityID, error) {
	if _, err := g.window.Take(ctx, email); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			g.bookkeeping("release refused attempt", g.window.Release(ctx, email))
			return "", accountflow.NewAuthError(accountflow.AuthDefault, ErrTooManyAttempts)
		}
		return "", accountflow.NewAuthError(accountflow.AuthDefault, err)
	}

	id, err := g.inner.SignIn(ctx, email, password)
	switch {
	case err == nil:
		g.bookkeeping("reset counter", g.window.Reset(ctx, email))
	case errors.Is(err, accountflow.ErrInvalidCredentials):
		// the taken attempt stays counted
	default:
		g.bookkeeping("release attempt", g.window.Release(ctx, email))
	}
	return id, err
}

func (g *SignInGuard) bookkeeping(op string, err error) {
	if err != nil {
		g.logger.Warn("sign-in guard "+op+" failed", zap.Error(err))
	}
}

// SignOut delegates to the inner gateway when it is a SessionTerminator.
func (g *SignInGuard) SignOut(ctx context.Context) error {
	term, ok := g.inner.(accountflow.SessionTerminator)
	if !ok {
		return accountflow.ErrSignOutUnsupported
	}
	return term.SignOut(ctx)
}

// FailedAttempts reports the failures counted for email in the current window.
func (g *SignInGuard) FailedAttempts(ctx context.Context, email string) (int, error) {
	return g.window.Attempts(ctx, email)
}
