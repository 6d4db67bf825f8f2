package flows

import "context"

// AccountCreateRequest is one validated-or-not account creation submission.
type AccountCreateRequest[U any] struct {
	Email    string
	Password string
	Profile  U
}

// AccountCreateResult is the terminal state of RunCreateAccount.
type AccountCreateResult[U any] struct {
	State State
	// FailedIn is the step that produced Err. Zero on success.
	FailedIn   State
	IdentityID string
	Profile    U
	Err        error
	// Orphaned is set when the identity exists but the profile was not saved.
	Orphaned bool
}

type AccountMetrics struct {
	Success            int
	ValidationRejected int
	IdentityFailed     int
	ProfileSaveFailed  int
	Orphaned           int
}

type AccountErrors struct {
	// EmptyIdentity is reported when the gateway succeeds without an id.
	EmptyIdentity error
}

// AccountDeps captures account creation dependencies.
type AccountDeps[U any] struct {
	Validate       func() error
	CreateIdentity func(ctx context.Context, email, password string) (string, error)
	SaveProfile    func(ctx context.Context, identityID string, profile U) error

	NormalizeAuthError        func(error) error
	NormalizePersistenceError func(error) error

	// OnOrphan is called synchronously once per orphaned identity.
	OnOrphan   func(ctx context.Context, identityID string, profile U, cause error)
	Transition func(from, to State)

	MetricInc func(int)
	Metrics   AccountMetrics
	Errors    AccountErrors
}

// RunCreateAccount drives Idle -> Validating -> CreatingIdentity ->
// PersistingProfile -> {Succeeded, Failed}. Validation failures never reach
// the gateway, and the profile is saved only after the identity exists.
func RunCreateAccount[U any](ctx context.Context, req AccountCreateRequest[U], deps AccountDeps[U]) AccountCreateResult[U] {
	normalizeAccountDeps(&deps)
	m := newMachine(deps.Transition)

	fail := func(step State, err error) AccountCreateResult[U] {
		m.enter(StateFailed)
		return AccountCreateResult[U]{State: StateFailed, FailedIn: step, Err: err}
	}

	m.enter(StateValidating)
	if err := deps.Validate(); err != nil {
		deps.MetricInc(deps.Metrics.ValidationRejected)
		return fail(StateValidating, err)
	}

	m.enter(StateCreatingIdentity)
	if err := ctx.Err(); err != nil {
		deps.MetricInc(deps.Metrics.IdentityFailed)
		return fail(StateCreatingIdentity, deps.NormalizeAuthError(err))
	}
	identityID, err := deps.CreateIdentity(ctx, req.Email, req.Password)
	if err == nil && blankIdentity(identityID) {
		err = deps.Errors.EmptyIdentity
	}
	if err != nil {
		deps.MetricInc(deps.Metrics.IdentityFailed)
		return fail(StateCreatingIdentity, deps.NormalizeAuthError(err))
	}

	m.enter(StatePersistingProfile)
	err = ctx.Err()
	if err == nil {
		err = deps.SaveProfile(ctx, identityID, req.Profile)
	}
	if err != nil {
		perr := deps.NormalizePersistenceError(err)
		deps.MetricInc(deps.Metrics.ProfileSaveFailed)
		deps.MetricInc(deps.Metrics.Orphaned)
		deps.OnOrphan(ctx, identityID, req.Profile, perr)
		out := fail(StatePersistingProfile, perr)
		out.IdentityID = identityID
		out.Orphaned = true
		return out
	}

	m.enter(StateSucceeded)
	deps.MetricInc(deps.Metrics.Success)
	return AccountCreateResult[U]{
		State:      StateSucceeded,
		IdentityID: identityID,
		Profile:    req.Profile,
	}
}

func normalizeAccountDeps[U any](deps *AccountDeps[U]) {
	if deps.Validate == nil {
		deps.Validate = func() error { return nil }
	}
	if deps.NormalizeAuthError == nil {
		deps.NormalizeAuthError = identityErr
	}
	if deps.NormalizePersistenceError == nil {
		deps.NormalizePersistenceError = identityErr
	}
	if deps.OnOrphan == nil {
		deps.OnOrphan = func(context.Context, string, U, error) {}
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
}

func identityErr(err error) error { return err }
