package flows

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

type profile struct{ Name string }

var (
	errInvalid   = errors.New("invalid")
	errNetwork   = errors.New("network")
	errNotFound  = errors.New("not found")
	errEmptyID   = errors.New("empty id")
	errBadRecord = errors.New("bad record")
)

type recorder struct {
	states []State
	calls  []string
	counts map[int]int
}

func newRecorder() *recorder { return &recorder{counts: map[int]int{}} }

func (r *recorder) transition(_, to State) { r.states = append(r.states, to) }
func (r *recorder) inc(id int)             { r.counts[id]++ }

func accountDeps(r *recorder) AccountDeps[profile] {
	return AccountDeps[profile]{
		Validate: func() error { r.calls = append(r.calls, "validate"); return nil },
		CreateIdentity: func(context.Context, string, string) (string, error) {
			r.calls = append(r.calls, "create")
			return "u1", nil
		},
		SaveProfile: func(context.Context, string, profile) error {
			r.calls = append(r.calls, "save")
			return nil
		},
		Transition: r.transition,
		MetricInc:  r.inc,
		Metrics: AccountMetrics{
			Success: 1, ValidationRejected: 2, IdentityFailed: 3, ProfileSaveFailed: 4, Orphaned: 5,
		},
		Errors: AccountErrors{EmptyIdentity: errEmptyID},
	}
}

func TestRunCreateAccountSuccess(t *testing.T) {
	r := newRecorder()
	res := RunCreateAccount(context.Background(), AccountCreateRequest[profile]{Email: "a@b.co", Password: "Abcdef1", Profile: profile{"Doe"}}, accountDeps(r))

	if res.State != StateSucceeded || res.Err != nil {
		t.Fatalf("expected success, got %v %v", res.State, res.Err)
	}
	if res.IdentityID != "u1" || res.Profile.Name != "Doe" {
		t.Fatalf("unexpected result %+v", res)
	}
	want := []State{StateValidating, StateCreatingIdentity, StatePersistingProfile, StateSucceeded}
	if !reflect.DeepEqual(r.states, want) {
		t.Fatalf("states = %v, want %v", r.states, want)
	}
	if !reflect.DeepEqual(r.calls, []string{"validate", "create", "save"}) {
		t.Fatalf("calls = %v", r.calls)
	}
	if r.counts[1] != 1 || len(r.counts) != 1 {
		t.Fatalf("metrics = %v", r.counts)
	}
}

func TestRunCreateAccountValidationFastFail(t *testing.T) {
	r := newRecorder()
	deps := accountDeps(r)
	deps.Validate = func() error { return errInvalid }

	res := RunCreateAccount(context.Background(), AccountCreateRequest[profile]{}, deps)
	if !errors.Is(res.Err, errInvalid) || res.FailedIn != StateValidating {
		t.Fatalf("expected validation failure, got %+v", res)
	}
	if len(r.calls) != 0 {
		t.Fatalf("providers must not be called, got %v", r.calls)
	}
	if !reflect.DeepEqual(r.states, []State{StateValidating, StateFailed}) {
		t.Fatalf("states = %v", r.states)
	}
}

func TestRunCreateAccountIdentityFailureSkipsSave(t *testing.T) {
	r := newRecorder()
	deps := accountDeps(r)
	deps.CreateIdentity = func(context.Context, string, string) (string, error) { return "", errNetwork }
	var normalized int
	deps.NormalizeAuthError = func(err error) error { normalized++; return err }

	res := RunCreateAccount(context.Background(), AccountCreateRequest[profile]{}, deps)
	if !errors.Is(res.Err, errNetwork) || res.FailedIn != StateCreatingIdentity {
		t.Fatalf("unexpected result %+v", res)
	}
	if normalized != 1 {
		t.Fatalf("expected auth normalization once, got %d", normalized)
	}
	for _, c := range r.calls {
		if c == "save" {
			t.Fatalf("save must not run after identity failure")
		}
	}
	if res.Orphaned || res.IdentityID != "" {
		t.Fatalf("identity failure is not an orphan: %+v", res)
	}
}

func TestRunCreateAccountEmptyIdentity(t *testing.T) {
	for _, id := range []string{"", " ", "\t\n"} {
		r := newRecorder()
		deps := accountDeps(r)
		deps.CreateIdentity = func(context.Context, string, string) (string, error) { return id, nil }
		orphaned := false
		deps.OnOrphan = func(context.Context, string, profile, error) { orphaned = true }

		res := RunCreateAccount(context.Background(), AccountCreateRequest[profile]{}, deps)
		if !errors.Is(res.Err, errEmptyID) || res.FailedIn != StateCreatingIdentity {
			t.Fatalf("id %q: expected empty identity error, got %+v", id, res)
		}
		if res.Orphaned || orphaned {
			t.Fatalf("id %q: blank identity must not be reported as an orphan", id)
		}
		for _, c := range r.calls {
			if c == "save" {
				t.Fatalf("id %q: save must not run", id)
			}
		}
		if r.counts[3] != 1 {
			t.Fatalf("id %q: expected identity failure metric, got %v", id, r.counts)
		}
	}
}

func TestRunCreateAccountOrphan(t *testing.T) {
	r := newRecorder()
	deps := accountDeps(r)
	deps.SaveProfile = func(context.Context, string, profile) error { return errBadRecord }
	var orphanID string
	var orphanCause error
	deps.OnOrphan = func(_ context.Context, id string, _ profile, cause error) {
		orphanID = id
		orphanCause = cause
	}

	res := RunCreateAccount(context.Background(), AccountCreateRequest[profile]{Profile: profile{"Doe"}}, deps)
	if res.State != StateFailed || res.FailedIn != StatePersistingProfile {
		t.Fatalf("unexpected result %+v", res)
	}
	if !res.Orphaned || res.IdentityID != "u1" {
		t.Fatalf("expected orphaned u1, got %+v", res)
	}
	if orphanID != "u1" || !errors.Is(orphanCause, errBadRecord) {
		t.Fatalf("orphan hook got %q %v", orphanID, orphanCause)
	}
	if r.counts[4] != 1 || r.counts[5] != 1 {
		t.Fatalf("metrics = %v", r.counts)
	}
}

func TestRunCreateAccountCanceledBeforeIdentity(t *testing.T) {
	r := newRecorder()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := RunCreateAccount(ctx, AccountCreateRequest[profile]{}, accountDeps(r))
	if !errors.Is(res.Err, context.Canceled) || res.FailedIn != StateCreatingIdentity {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(r.calls) != 1 {
		t.Fatalf("only validation should run, got %v", r.calls)
	}
}

func sessionDeps(r *recorder) SessionDeps[profile] {
	return SessionDeps[profile]{
		Validate: func() error { r.calls = append(r.calls, "validate"); return nil },
		SignIn: func(context.Context, string, string) (string, error) {
			r.calls = append(r.calls, "signin")
			return "u1", nil
		},
		FetchProfile: func(_ context.Context, id string) (profile, error) {
			r.calls = append(r.calls, "fetch:"+id)
			return profile{"Doe"}, nil
		},
		Transition: r.transition,
		MetricInc:  r.inc,
		Metrics: SessionMetrics{
			Success: 1, ValidationRejected: 2, AuthFailed: 3, ProfileFetchFailed: 4, DegradedSession: 5, ProfileFetchSuccess: 6,
		},
		Errors: SessionErrors{EmptyIdentity: errEmptyID},
	}
}

func TestRunSignInSuccess(t *testing.T) {
	r := newRecorder()
	res := RunSignIn(context.Background(), SignInRequest{Email: "a@b.co", Password: "x"}, sessionDeps(r))
	if res.State != StateSucceeded || res.Profile.Name != "Doe" || !res.SessionEstablished {
		t.Fatalf("unexpected result %+v", res)
	}
	want := []State{StateValidating, StateAuthenticating, StateFetchingProfile, StateSucceeded}
	if !reflect.DeepEqual(r.states, want) {
		t.Fatalf("states = %v, want %v", r.states, want)
	}
	if !reflect.DeepEqual(r.calls, []string{"validate", "signin", "fetch:u1"}) {
		t.Fatalf("calls = %v", r.calls)
	}
}

func TestRunSignInAuthFailure(t *testing.T) {
	r := newRecorder()
	deps := sessionDeps(r)
	deps.SignIn = func(context.Context, string, string) (string, error) { return "", errInvalid }

	res := RunSignIn(context.Background(), SignInRequest{}, deps)
	if !errors.Is(res.Err, errInvalid) || res.SessionEstablished {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(r.calls) != 1 {
		t.Fatalf("fetch must not run, calls = %v", r.calls)
	}
}

func TestRunSignInFetchFailureKeepsSession(t *testing.T) {
	r := newRecorder()
	deps := sessionDeps(r)
	deps.FetchProfile = func(context.Context, string) (profile, error) { return profile{}, errNotFound }

	res := RunSignIn(context.Background(), SignInRequest{}, deps)
	if !errors.Is(res.Err, errNotFound) || res.FailedIn != StateFetchingProfile {
		t.Fatalf("unexpected result %+v", res)
	}
	if !res.SessionEstablished || res.IdentityID != "u1" {
		t.Fatalf("session should remain established: %+v", res)
	}
	if r.counts[5] != 1 {
		t.Fatalf("expected degraded session metric, got %v", r.counts)
	}
}

func TestRunSignInBlankIdentity(t *testing.T) {
	r := newRecorder()
	deps := sessionDeps(r)
	deps.SignIn = func(context.Context, string, string) (string, error) { return "  ", nil }

	res := RunSignIn(context.Background(), SignInRequest{Email: "a@b.co", Password: "x"}, deps)
	if !errors.Is(res.Err, errEmptyID) || res.FailedIn != StateAuthenticating || res.SessionEstablished {
		t.Fatalf("unexpected result %+v", res)
	}
	for _, c := range r.calls {
		if strings.HasPrefix(c, "fetch:") {
			t.Fatal("fetch must not run for a blank identity")
		}
	}
}

func TestRunFetchProfile(t *testing.T) {
	r := newRecorder()
	res := RunFetchProfile(context.Background(), "u9", sessionDeps(r))
	if res.State != StateSucceeded || res.IdentityID != "u9" {
		t.Fatalf("unexpected result %+v", res)
	}
	if !reflect.DeepEqual(r.calls, []string{"fetch:u9"}) {
		t.Fatalf("calls = %v", r.calls)
	}
	if !reflect.DeepEqual(r.states, []State{StateFetchingProfile, StateSucceeded}) {
		t.Fatalf("states = %v", r.states)
	}
}

func TestStateStrings(t *testing.T) {
	for s := StateIdle; s <= StateFailed; s++ {
		if s.String() == "unknown" {
			t.Fatalf("state %d has no name", s)
		}
	}
	if !StateFailed.Terminal() || StateFetchingProfile.Terminal() {
		t.Fatal("terminal classification wrong")
	}
}
