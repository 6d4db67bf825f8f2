package flows

import "context"

type SignInRequest struct {
	Email    string
	Password string
}

// SignInResult is the terminal state of RunSignIn.
type SignInResult[U any] struct {
	State      State
	FailedIn   State
	IdentityID string
	Profile    U
	Err        error
	// SessionEstablished is set once the gateway accepted the credentials,
	// including when the profile fetch that followed failed.
	SessionEstablished bool
}

type SessionMetrics struct {
	Success             int
	ValidationRejected  int
	AuthFailed          int
	ProfileFetchFailed  int
	DegradedSession     int
	ProfileFetchSuccess int
}

type SessionErrors struct {
	EmptyIdentity error
}

// SessionDeps captures sign-in and profile fetch dependencies.
type SessionDeps[U any] struct {
	Validate     func() error
	SignIn       func(ctx context.Context, email, password string) (string, error)
	FetchProfile func(ctx context.Context, identityID string) (U, error)

	NormalizeAuthError        func(error) error
	NormalizePersistenceError func(error) error

	Transition func(from, to State)

	MetricInc func(int)
	Metrics   SessionMetrics
	Errors    SessionErrors
}

// RunSignIn drives Idle -> Validating -> Authenticating -> FetchingProfile ->
// {Succeeded, Failed}. A fetch failure after a successful sign-in is reported
// with SessionEstablished set; no sign-out is attempted.
func RunSignIn[U any](ctx context.Context, req SignInRequest, deps SessionDeps[U]) SignInResult[U] {
	normalizeSessionDeps(&deps)
	m := newMachine(deps.Transition)

	fail := func(step State, err error) SignInResult[U] {
		m.enter(StateFailed)
		return SignInResult[U]{State: StateFailed, FailedIn: step, Err: err}
	}

	m.enter(StateValidating)
	if err := deps.Validate(); err != nil {
		deps.MetricInc(deps.Metrics.ValidationRejected)
		return fail(StateValidating, err)
	}

	m.enter(StateAuthenticating)
	if err := ctx.Err(); err != nil {
		deps.MetricInc(deps.Metrics.AuthFailed)
		return fail(StateAuthenticating, deps.NormalizeAuthError(err))
	}
	identityID, err := deps.SignIn(ctx, req.Email, req.Password)
	if err == nil && blankIdentity(identityID) {
		err = deps.Errors.EmptyIdentity
	}
	if err != nil {
		deps.MetricInc(deps.Metrics.AuthFailed)
		return fail(StateAuthenticating, deps.NormalizeAuthError(err))
	}

	m.enter(StateFetchingProfile)
	profile, err := fetch(ctx, identityID, deps)
	if err != nil {
		deps.MetricInc(deps.Metrics.ProfileFetchFailed)
		deps.MetricInc(deps.Metrics.DegradedSession)
		out := fail(StateFetchingProfile, err)
		out.IdentityID = identityID
		out.SessionEstablished = true
		return out
	}

	m.enter(StateSucceeded)
	deps.MetricInc(deps.Metrics.Success)
	return SignInResult[U]{
		State:              StateSucceeded,
		IdentityID:         identityID,
		Profile:            profile,
		SessionEstablished: true,
	}
}

// RunFetchProfile drives Idle -> FetchingProfile -> {Succeeded, Failed} for
// an identity whose session already exists.
func RunFetchProfile[U any](ctx context.Context, identityID string, deps SessionDeps[U]) SignInResult[U] {
	normalizeSessionDeps(&deps)
	m := newMachine(deps.Transition)

	m.enter(StateFetchingProfile)
	profile, err := fetch(ctx, identityID, deps)
	if err != nil {
		deps.MetricInc(deps.Metrics.ProfileFetchFailed)
		m.enter(StateFailed)
		return SignInResult[U]{
			State:              StateFailed,
			FailedIn:           StateFetchingProfile,
			IdentityID:         identityID,
			Err:                err,
			SessionEstablished: true,
		}
	}

	m.enter(StateSucceeded)
	deps.MetricInc(deps.Metrics.ProfileFetchSuccess)
	return SignInResult[U]{
		State:              StateSucceeded,
		IdentityID:         identityID,
		Profile:            profile,
		SessionEstablished: true,
	}
}

func fetch[U any](ctx context.Context, identityID string, deps SessionDeps[U]) (U, error) {
	var zero U
	if err := ctx.Err(); err != nil {
		return zero, deps.NormalizePersistenceError(err)
	}
	profile, err := deps.FetchProfile(ctx, identityID)
	if err != nil {
		return zero, deps.NormalizePersistenceError(err)
	}
	return profile, nil
}

func normalizeSessionDeps[U any](deps *SessionDeps[U]) {
	if deps.Validate == nil {
		deps.Validate = func() error { return nil }
	}
	if deps.NormalizeAuthError == nil {
		deps.NormalizeAuthError = identityErr
	}
	if deps.NormalizePersistenceError == nil {
		deps.NormalizePersistenceError = identityErr
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
}
