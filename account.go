package accountflow

import (
	"context"

	"go.uber.org/zap"

	"github.com/MrEthical07/accountflow/internal/flows"
)

// AccountOrchestrator runs account creation submissions: validate the form,
// create the identity, then persist the profile under the new IdentityID.
//
// At most one submission is in flight per AccountOrchestrator. Create one
// orchestrator per form or screen with Engine.NewAccountOrchestrator.
type AccountOrchestrator struct {
	runner
	gateway AuthGateway
	store   ProfileStore
	orphans OrphanRecorder
}

// Submit validates and runs form asynchronously. The returned channel
// receives exactly one Output and is then closed.
//
// Submit returns ErrSubmissionInFlight (reject policy) or blocks (queue
// policy) while another submission on o is pending, and
// ErrSubmissionRateLimited when throttled. Those errors produce no Output.
func (o *AccountOrchestrator) Submit(ctx context.Context, form AccountForm) (<-chan Output, error) {
	if o == nil {
		return nil, ErrEngineNotReady
	}
	return o.start(ctx, FlowCreateAccount, MetricAccountCreationLatency, func(ctx context.Context, log *zap.Logger) Output {
		return o.run(ctx, log, form)
	})
}

// Run is Submit followed by a wait for the Output.
func (o *AccountOrchestrator) Run(ctx context.Context, form AccountForm) (Output, error) {
	return wait(o.Submit(ctx, form))
}

func (o *AccountOrchestrator) run(ctx context.Context, log *zap.Logger, form AccountForm) Output {
	m := o.engine.metrics
	creds := form.credentials()
	log.Debug("account submission accepted", zap.Object("credentials", creds))

	res := flows.RunCreateAccount(ctx, flows.AccountCreateRequest[User]{
		Email:    creds.Email,
		Password: creds.Password,
		Profile:  form.user(),
	}, flows.AccountDeps[User]{
		Validate: func() error { return validateAccount(form) },
		CreateIdentity: func(ctx context.Context, email, password string) (string, error) {
			id, err := o.gateway.CreateAccount(ctx, email, password)
			return string(id), err
		},
		SaveProfile: func(ctx context.Context, id string, u User) error {
			return o.store.Save(ctx, IdentityID(id), u)
		},
		NormalizeAuthError:        normalizeAuth,
		NormalizePersistenceError: normalizePersistence,
		OnOrphan: func(ctx context.Context, id string, u User, cause error) {
			o.recordOrphan(ctx, log, IdentityID(id), u, cause)
		},
		Transition: transitionLogger(log),
		MetricInc:  m.inc,
		Metrics: flows.AccountMetrics{
			Success:            int(MetricAccountCreationSuccess),
			ValidationRejected: int(MetricAccountValidationRejected),
			IdentityFailed:     int(MetricIdentityCreationFailure),
			ProfileSaveFailed:  int(MetricProfileSaveFailure),
			Orphaned:           int(MetricOrphanedIdentity),
		},
		Errors: flows.AccountErrors{
			EmptyIdentity: NewAuthError(AuthDefault, ErrInvalidIdentityID),
		},
	})

	out := Output{
		IdentityID: IdentityID(res.IdentityID),
		Orphaned:   res.Orphaned,
	}
	if res.State == flows.StateSucceeded {
		out.Result = Succeeded(res.Profile)
		return out
	}
	m.Inc(MetricAccountCreationFailure)
	out.Result = Failed[User](res.Err)
	return out
}

func (o *AccountOrchestrator) recordOrphan(ctx context.Context, log *zap.Logger, id IdentityID, u User, cause error) {
	log.Error("identity created without profile",
		zap.String("identity_id", id.String()),
		zap.String("error_kind", ErrorCode(cause)),
	)
	if o.orphans == nil {
		return
	}
	err := o.orphans.RecordOrphan(context.WithoutCancel(ctx), OrphanedIdentity{
		IdentityID: id,
		User:       u,
		Cause:      cause,
		DetectedAt: o.engine.now(),
	})
	if err != nil {
		log.Error("orphan record failed", zap.String("identity_id", id.String()), zap.Error(err))
	}
}
