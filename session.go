package accountflow

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/MrEthical07/accountflow/internal/flows"
)

// SessionOrchestrator runs sign-in submissions: validate the form,
// authenticate, then fetch the profile of the authenticated identity.
//
// When sign-in succeeds but the fetch fails, the Output is Failed with
// SessionEstablished set. The provider session is left as is; call SignOut
// to end it.
type SessionOrchestrator struct {
	runner
	gateway AuthGateway
	store   ProfileStore
}

// Submit validates and runs form asynchronously. Admission behaves like
// AccountOrchestrator.Submit.
func (o *SessionOrchestrator) Submit(ctx context.Context, form LoginForm) (<-chan Output, error) {
	if o == nil {
		return nil, ErrEngineNotReady
	}
	return o.start(ctx, FlowSignIn, MetricSignInLatency, func(ctx context.Context, log *zap.Logger) Output {
		return o.signIn(ctx, log, form)
	})
}

// Run is Submit followed by a wait for the Output.
func (o *SessionOrchestrator) Run(ctx context.Context, form LoginForm) (Output, error) {
	return wait(o.Submit(ctx, form))
}

// FetchProfile loads the profile of an identity whose session already
// exists. It shares the in-flight slot with Submit.
func (o *SessionOrchestrator) FetchProfile(ctx context.Context, id IdentityID) (<-chan Output, error) {
	if o == nil {
		return nil, ErrEngineNotReady
	}
	if !id.Valid() {
		return nil, ErrInvalidIdentityID
	}
	return o.start(ctx, FlowFetchProfile, metricIDCount, func(ctx context.Context, log *zap.Logger) Output {
		res := flows.RunFetchProfile(ctx, string(id), o.deps(log, func() error { return nil }))
		return sessionOutput(res)
	})
}

// SignOut ends the provider session through the gateway's SessionTerminator
// capability. It returns ErrSignOutUnsupported when the gateway has none.
func (o *SessionOrchestrator) SignOut(ctx context.Context) error {
	if o == nil || o.engine == nil {
		return ErrEngineNotReady
	}
	term, ok := o.gateway.(SessionTerminator)
	if !ok {
		return ErrSignOutUnsupported
	}
	if err := term.SignOut(ctx); err != nil {
		if errors.Is(err, ErrSignOutUnsupported) {
			return ErrSignOutUnsupported
		}
		aerr := AsAuthError(err)
		o.logger.Warn("sign out failed", zap.String("error_kind", aerr.Kind.Code()))
		return aerr
	}
	o.engine.metrics.Inc(MetricSignOut)
	o.logger.Info("signed out")
	return nil
}

func (o *SessionOrchestrator) signIn(ctx context.Context, log *zap.Logger, form LoginForm) Output {
	creds := form.credentials()
	log.Debug("sign-in submission accepted", zap.Object("credentials", creds))

	res := flows.RunSignIn(ctx, flows.SignInRequest{
		Email:    creds.Email,
		Password: creds.Password,
	}, o.deps(log, func() error { return validateLogin(form) }))

	if res.State != flows.StateSucceeded {
		o.engine.metrics.Inc(MetricSignInFailure)
	}
	return sessionOutput(res)
}

func (o *SessionOrchestrator) deps(log *zap.Logger, validate func() error) flows.SessionDeps[User] {
	return flows.SessionDeps[User]{
		Validate: validate,
		SignIn: func(ctx context.Context, email, password string) (string, error) {
			id, err := o.gateway.SignIn(ctx, email, password)
			return string(id), err
		},
		FetchProfile: func(ctx context.Context, id string) (User, error) {
			return o.store.Fetch(ctx, IdentityID(id))
		},
		NormalizeAuthError:        normalizeAuth,
		NormalizePersistenceError: normalizePersistence,
		Transition:                transitionLogger(log),
		MetricInc:                 o.engine.metrics.inc,
		Metrics: flows.SessionMetrics{
			Success:             int(MetricSignInSuccess),
			ValidationRejected:  int(MetricSignInValidationRejected),
			AuthFailed:          int(MetricAuthFailure),
			ProfileFetchFailed:  int(MetricProfileFetchFailure),
			DegradedSession:     int(MetricDegradedSession),
			ProfileFetchSuccess: int(MetricProfileFetchSuccess),
		},
		Errors: flows.SessionErrors{
			EmptyIdentity: NewAuthError(AuthDefault, ErrInvalidIdentityID),
		},
	}
}

func sessionOutput(res flows.SignInResult[User]) Output {
	out := Output{
		IdentityID:         IdentityID(res.IdentityID),
		SessionEstablished: res.SessionEstablished,
	}
	if res.State == flows.StateSucceeded {
		out.Result = Succeeded(res.Profile)
	} else {
		out.Result = Failed[User](res.Err)
	}
	return out
}
