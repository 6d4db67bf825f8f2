package accountflow_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/MrEthical07/accountflow"
	"github.com/MrEthical07/accountflow/provider/memory"
)

const testPassword = "Sup3rSecret"

type harness struct {
	engine  *accountflow.Engine
	gateway *memory.Gateway
	store   *memory.Store
	sink    *accountflow.ChannelSink
}

func newHarness(t *testing.T, configure func(*accountflow.Builder), ids ...string) *harness {
	t.Helper()

	gw, err := memory.NewGateway(memory.WithIDs(ids...))
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	h := &harness{
		gateway: gw,
		store:   memory.NewStore(),
		sink:    accountflow.NewChannelSink(32),
	}
	b := accountflow.New().
		WithAuthGateway(h.gateway).
		WithProfileStore(h.store).
		WithOutputSink(h.sink)
	if configure != nil {
		configure(b)
	}
	h.engine, err = b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(h.engine.Close)
	return h
}

func accountForm(email string) accountflow.AccountForm {
	b := time.Date(1991, 6, 1, 0, 0, 0, 0, time.UTC)
	return accountflow.AccountForm{
		Lastname:        "Martin",
		Firstname:       "Alice",
		Email:           email,
		Password:        testPassword,
		ConfirmPassword: testPassword,
		Birthdate:       &b,
		Gender:          accountflow.GenderFemale,
	}
}

func mustAccept(t *testing.T, ch <-chan accountflow.Output, err error) accountflow.Output {
	t.Helper()
	if err != nil {
		t.Fatalf("submission not accepted: %v", err)
	}
	select {
	case out, ok := <-ch:
		if !ok {
			t.Fatal("output channel closed without an output")
		}
		if _, more := <-ch; more {
			t.Fatal("more than one output delivered")
		}
		return out
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for output")
	}
	return accountflow.Output{}
}

func TestCreateAccountSucceeds(t *testing.T) {
	h := newHarness(t, nil, "u1")
	form := accountForm("alice@example.com")

	ch, err := h.engine.NewAccountOrchestrator().Submit(context.Background(), form)
	out := mustAccept(t, ch, err)
	u, ok := out.Result.Value()
	if !ok {
		t.Fatalf("expected success, got %v", out.Result.Err())
	}
	if out.IdentityID != "u1" || out.Flow != accountflow.FlowCreateAccount || out.SubmissionID == "" {
		t.Fatalf("unexpected output %+v", out)
	}
	if u.Lastname != "Martin" || u.Firstname != "Alice" || u.Email != form.Email || u.Gender != accountflow.GenderFemale {
		t.Fatalf("profile does not match submitted fields: %+v", u)
	}
	if !h.store.Has("u1") {
		t.Fatal("profile not persisted under u1")
	}
	if got := h.engine.MetricsSnapshot().Counters[accountflow.MetricAccountCreationSuccess]; got != 1 {
		t.Fatalf("expected one success, got %d", got)
	}
}

func TestCreateAccountIdentityFailureSkipsSave(t *testing.T) {
	h := newHarness(t, nil)
	h.gateway.FailCreate(accountflow.NewAuthError(accountflow.AuthNetwork, errors.New("offline")), 1)

	ch, err := h.engine.NewAccountOrchestrator().Submit(context.Background(), accountForm("bob@example.com"))
	out := mustAccept(t, ch, err)
	if !errors.Is(out.Result.Err(), accountflow.ErrNetwork) {
		t.Fatalf("expected network error, got %v", out.Result.Err())
	}
	if h.store.SaveCalls() != 0 {
		t.Fatal("profile save must not run after identity failure")
	}
	if out.Orphaned || out.IdentityID != "" {
		t.Fatalf("unexpected output %+v", out)
	}
}

type orphanLog struct {
	mu      sync.Mutex
	entries []accountflow.OrphanedIdentity
}

func (l *orphanLog) RecordOrphan(_ context.Context, o accountflow.OrphanedIdentity) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, o)
	return nil
}

func TestCreateAccountOrphanedIdentity(t *testing.T) {
	orphans := &orphanLog{}
	fixed := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	h := newHarness(t, func(b *accountflow.Builder) {
		b.WithOrphanRecorder(orphans).WithClock(func() time.Time { return fixed })
	}, "u2")
	h.store.FailSave(accountflow.NewPersistenceError(accountflow.PersistenceInvalidUserData, nil), 1)

	ch, err := h.engine.NewAccountOrchestrator().Submit(context.Background(), accountForm("carol@example.com"))
	out := mustAccept(t, ch, err)
	if !errors.Is(out.Result.Err(), accountflow.ErrInvalidUserData) {
		t.Fatalf("expected invalid user data, got %v", out.Result.Err())
	}
	if !out.Orphaned || out.IdentityID != "u2" {
		t.Fatalf("expected orphaned u2, got %+v", out)
	}
	if h.gateway.Accounts() != 1 {
		t.Fatal("identity must not be rolled back")
	}

	orphans.mu.Lock()
	if len(orphans.entries) != 1 || orphans.entries[0].IdentityID != "u2" || !orphans.entries[0].DetectedAt.Equal(fixed) {
		t.Fatalf("unexpected orphan records %+v", orphans.entries)
	}
	orphans.mu.Unlock()

	ch, err = h.engine.NewSessionOrchestrator().FetchProfile(context.Background(), "u2")
	fetched := mustAccept(t, ch, err)
	if !errors.Is(fetched.Result.Err(), accountflow.ErrDocumentNotFound) {
		t.Fatalf("expected document not found for u2, got %v", fetched.Result.Err())
	}
	if got := h.engine.MetricsSnapshot().Counters[accountflow.MetricOrphanedIdentity]; got != 1 {
		t.Fatalf("expected one orphan metric, got %d", got)
	}
}

func TestValidationFailureNeverReachesProviders(t *testing.T) {
	h := newHarness(t, nil)
	form := accountForm("dave@example.com")
	form.Password, form.ConfirmPassword = "abc1234", "abc1234"

	ch, err := h.engine.NewAccountOrchestrator().Submit(context.Background(), form)
	out := mustAccept(t, ch, err)
	if !errors.Is(out.Result.Err(), accountflow.ErrWeakPassword) {
		t.Fatalf("expected weak password, got %v", out.Result.Err())
	}

	ch, err = h.engine.NewSessionOrchestrator().Submit(context.Background(), accountflow.LoginForm{Email: "nope", Password: "x"})
	signIn := mustAccept(t, ch, err)
	if !errors.Is(signIn.Result.Err(), accountflow.ErrBadlyFormattedEmail) {
		t.Fatalf("expected badly formatted email, got %v", signIn.Result.Err())
	}

	if h.gateway.CreateCalls() != 0 || h.gateway.SignInCalls() != 0 || h.store.SaveCalls() != 0 || h.store.FetchCalls() != 0 {
		t.Fatal("providers must not be called for invalid forms")
	}
}

func TestSignInRoundTrip(t *testing.T) {
	h := newHarness(t, nil, "u1")
	ctx := context.Background()
	if _, err := h.engine.NewAccountOrchestrator().Run(ctx, accountForm("erin@example.com")); err != nil {
		t.Fatalf("create: %v", err)
	}

	sessions := h.engine.NewSessionOrchestrator()
	out, err := sessions.Run(ctx, accountflow.LoginForm{Email: "erin@example.com", Password: testPassword})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	u, ok := out.Result.Value()
	if !ok || u.Firstname != "Alice" || !out.SessionEstablished || out.IdentityID != "u1" {
		t.Fatalf("unexpected sign-in output %+v", out)
	}
	if id, ok := h.gateway.CurrentSession(); !ok || id != "u1" {
		t.Fatalf("expected session for u1, got %q %v", id, ok)
	}

	if err := sessions.SignOut(ctx); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if _, ok := h.gateway.CurrentSession(); ok {
		t.Fatal("session must be cleared")
	}

	bad, err := sessions.Run(ctx, accountflow.LoginForm{Email: "erin@example.com", Password: "Wrong1234"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !errors.Is(bad.Result.Err(), accountflow.ErrInvalidCredentials) || bad.SessionEstablished {
		t.Fatalf("expected invalid credentials, got %+v", bad)
	}
}

func TestSignInProfileMissing(t *testing.T) {
	h := newHarness(t, nil, "u3")
	if _, err := h.gateway.CreateAccount(context.Background(), "frank@example.com", testPassword); err != nil {
		t.Fatalf("seed identity: %v", err)
	}

	ch, err := h.engine.NewSessionOrchestrator().Submit(context.Background(), accountflow.LoginForm{Email: "frank@example.com", Password: testPassword})
	out := mustAccept(t, ch, err)
	if !errors.Is(out.Result.Err(), accountflow.ErrDocumentNotFound) {
		t.Fatalf("expected document not found, got %v", out.Result.Err())
	}
	if !out.SessionEstablished || out.IdentityID != "u3" {
		t.Fatalf("expected established session for u3, got %+v", out)
	}
	if _, ok := h.gateway.CurrentSession(); !ok {
		t.Fatal("session must be left in place")
	}
}

type authOnly struct {
	accountflow.AuthGateway
}

func TestSignOutUnsupported(t *testing.T) {
	gw, err := memory.NewGateway()
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	e, err := accountflow.New().WithAuthGateway(authOnly{gw}).WithProfileStore(memory.NewStore()).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer e.Close()

	if err := e.NewSessionOrchestrator().SignOut(context.Background()); !errors.Is(err, accountflow.ErrSignOutUnsupported) {
		t.Fatalf("expected unsupported, got %v", err)
	}
}

func TestSignOutFailureNormalized(t *testing.T) {
	h := newHarness(t, nil)
	h.gateway.FailSignOut(errors.New("socket closed"), 1)
	if err := h.engine.NewSessionOrchestrator().SignOut(context.Background()); !errors.Is(err, accountflow.ErrAuthDefault) {
		t.Fatalf("expected auth default, got %v", err)
	}
}

func TestFetchProfileRejectsEmptyID(t *testing.T) {
	h := newHarness(t, nil)
	if _, err := h.engine.NewSessionOrchestrator().FetchProfile(context.Background(), " "); !errors.Is(err, accountflow.ErrInvalidIdentityID) {
		t.Fatalf("expected ErrInvalidIdentityID, got %v", err)
	}
}

func TestConcurrentSubmitRejected(t *testing.T) {
	h := newHarness(t, nil, "u1")
	release := h.gateway.Hold()
	t.Cleanup(release)

	accounts := h.engine.NewAccountOrchestrator()
	ch, err := accounts.Submit(context.Background(), accountForm("gina@example.com"))
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := accounts.Submit(context.Background(), accountForm("gina@example.com")); !errors.Is(err, accountflow.ErrSubmissionInFlight) {
		t.Fatalf("expected in flight, got %v", err)
	}

	// A second orchestrator has its own slot.
	other, err := h.engine.NewAccountOrchestrator().Submit(context.Background(), accountForm("hank@example.com"))
	if err != nil {
		t.Fatalf("independent orchestrator rejected: %v", err)
	}

	release()
	if out := mustAccept(t, ch, nil); !out.Result.OK() {
		t.Fatalf("expected success, got %v", out.Result.Err())
	}
	mustAccept(t, other, nil)
	if h.gateway.Accounts() != 2 {
		t.Fatalf("expected two identities, got %d", h.gateway.Accounts())
	}
	if got := h.engine.MetricsSnapshot().Counters[accountflow.MetricSubmissionInFlightRejected]; got != 1 {
		t.Fatalf("expected one rejection, got %d", got)
	}
}

func TestConcurrentSubmitQueued(t *testing.T) {
	h := newHarness(t, func(b *accountflow.Builder) {
		b.WithConcurrencyPolicy(accountflow.QueueConcurrent)
	})
	release := h.gateway.Hold()
	t.Cleanup(release)

	accounts := h.engine.NewAccountOrchestrator()
	first, err := accounts.Submit(context.Background(), accountForm("ivy@example.com"))
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}

	type accepted struct {
		ch  <-chan accountflow.Output
		err error
	}
	queued := make(chan accepted, 1)
	go func() {
		ch, err := accounts.Submit(context.Background(), accountForm("jack@example.com"))
		queued <- accepted{ch, err}
	}()

	select {
	case <-queued:
		t.Fatal("second submission admitted while first in flight")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	mustAccept(t, first, nil)
	var second accepted
	select {
	case second = <-queued:
	case <-time.After(5 * time.Second):
		t.Fatal("queued submission never admitted")
	}
	if out := mustAccept(t, second.ch, second.err); !out.Result.OK() {
		t.Fatalf("queued submission failed: %v", out.Result.Err())
	}
}

func TestSubmitRateLimited(t *testing.T) {
	h := newHarness(t, func(b *accountflow.Builder) {
		cfg := accountflow.DefaultConfig()
		cfg.Submission.RateLimit = 0.001
		cfg.Submission.RateBurst = 1
		b.WithConfig(cfg)
	})
	sessions := h.engine.NewSessionOrchestrator()
	form := accountflow.LoginForm{Email: "kim@example.com", Password: "Whatever1"}

	if _, err := sessions.Run(context.Background(), form); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := sessions.Submit(context.Background(), form); !errors.Is(err, accountflow.ErrSubmissionRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
}

func TestSubmissionTimeout(t *testing.T) {
	h := newHarness(t, func(b *accountflow.Builder) {
		cfg := accountflow.DefaultConfig()
		cfg.Submission.Timeout = 30 * time.Millisecond
		b.WithConfig(cfg)
	})
	release := h.gateway.Hold()
	t.Cleanup(release)

	ch, err := h.engine.NewAccountOrchestrator().Submit(context.Background(), accountForm("liam@example.com"))
	out := mustAccept(t, ch, err)
	err = out.Result.Err()
	if !errors.Is(err, accountflow.ErrAuthDefault) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected auth default wrapping deadline, got %v", err)
	}
	if h.store.SaveCalls() != 0 {
		t.Fatal("save must not run after a timed out identity step")
	}
}

func TestOutputsRelayedToSinks(t *testing.T) {
	var buf bytes.Buffer
	channel := accountflow.NewChannelSink(8)
	gw, err := memory.NewGateway(memory.WithIDs("u1"))
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	e, err := accountflow.New().
		WithAuthGateway(gw).
		WithProfileStore(memory.NewStore()).
		WithOutputSink(accountflow.MultiSink{channel, accountflow.NewJSONWriterSink(&buf)}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	out, err := e.NewAccountOrchestrator().Run(context.Background(), accountForm("mia@example.com"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	e.Close()

	select {
	case relayed := <-channel.Outputs():
		if relayed.SubmissionID != out.SubmissionID {
			t.Fatalf("relayed %s, want %s", relayed.SubmissionID, out.SubmissionID)
		}
	default:
		t.Fatal("output not relayed")
	}
	line := buf.String()
	if !strings.Contains(line, `"flow":"create_account"`) || !strings.Contains(line, `"identity_id":"u1"`) {
		t.Fatalf("unexpected json line %s", line)
	}
	if strings.Contains(line, testPassword) {
		t.Fatal("password written to sink")
	}
	if e.EventsDropped() != 0 {
		t.Fatalf("unexpected drops: %d", e.EventsDropped())
	}
}

func TestClosedEngineRejects(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.Close()
	h.engine.Close()

	if _, err := h.engine.NewAccountOrchestrator().Submit(context.Background(), accountForm("nia@example.com")); !errors.Is(err, accountflow.ErrEngineClosed) {
		t.Fatalf("expected engine closed, got %v", err)
	}
}

func TestCloseWaitsForInflight(t *testing.T) {
	h := newHarness(t, nil)
	release := h.gateway.Hold()

	ch, err := h.engine.NewAccountOrchestrator().Submit(context.Background(), accountForm("omar@example.com"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	closed := make(chan struct{})
	go func() {
		h.engine.Close()
		close(closed)
	}()
	select {
	case <-closed:
		t.Fatal("Close returned with a submission in flight")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	<-closed
	mustAccept(t, ch, nil)
	select {
	case <-h.sink.Outputs():
	default:
		t.Fatal("in-flight output not relayed before Close returned")
	}
}

func TestCloseDoesNotWaitOnStalledSink(t *testing.T) {
	sink := accountflow.NewChannelSink(1)
	h := newHarness(t, func(b *accountflow.Builder) {
		cfg := accountflow.DefaultConfig()
		cfg.Events.BufferSize = 1
		b.WithConfig(cfg).WithOutputSink(sink)
	})

	sessions := h.engine.NewSessionOrchestrator()
	for i := 0; i < 5; i++ {
		out, err := sessions.Run(context.Background(), accountflow.LoginForm{Email: "quinn@example.com", Password: testPassword})
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if !errors.Is(out.Result.Err(), accountflow.ErrInvalidCredentials) {
			t.Fatalf("run %d: expected invalid credentials, got %v", i, out.Result.Err())
		}
	}

	closed := make(chan struct{})
	go func() {
		h.engine.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(3 * time.Second):
		t.Fatal("Close blocked on a sink nobody reads")
	}
	if got := len(sink.Outputs()); got != 1 {
		t.Fatalf("expected the sink buffer to hold one output, got %d", got)
	}
}

func TestBuildRequiresProviders(t *testing.T) {
	if _, err := accountflow.New().Build(); err == nil {
		t.Fatal("expected error without providers")
	}
	b := accountflow.New().WithAuthGateway(authOnly{}).WithProfileStore(memory.NewStore())
	if _, err := b.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := b.Build(); err == nil {
		t.Fatal("builder must be single use")
	}
	bad := accountflow.New().WithAuthGateway(authOnly{}).WithProfileStore(memory.NewStore()).WithMetricsEnabled(false).WithLatencyHistograms(true)
	if _, err := bad.Build(); err == nil {
		t.Fatal("expected config validation error")
	}
}

func TestLogsNeverContainPassword(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := newHarness(t, func(b *accountflow.Builder) {
		b.WithLogger(zap.New(core)).WithLatencyHistograms(true)
	})
	ctx := context.Background()

	form := accountForm("pat@example.com")
	if _, err := h.engine.NewAccountOrchestrator().Run(ctx, form); err != nil {
		t.Fatalf("create: %v", err)
	}
	sessions := h.engine.NewSessionOrchestrator()
	if _, err := sessions.Run(ctx, accountflow.LoginForm{Email: form.Email, Password: testPassword}); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if _, err := sessions.Run(ctx, accountflow.LoginForm{Email: form.Email, Password: "Wr0ngPassword"}); err != nil {
		t.Fatalf("sign in: %v", err)
	}

	if logs.Len() == 0 {
		t.Fatal("expected log entries")
	}
	for _, entry := range logs.All() {
		text := entry.Message + fmt.Sprint(entry.ContextMap())
		if strings.Contains(text, testPassword) || strings.Contains(text, "Wr0ngPassword") || strings.Contains(text, "pat@example.com") {
			t.Fatalf("credentials leaked in log entry: %s", text)
		}
	}
	if logs.FilterMessage("submission failed").FilterField(zap.String("error_kind", "invalid_credentials")).Len() != 1 {
		t.Fatal("expected one failed sign-in log with error kind")
	}
	if len(h.engine.MetricsSnapshot().Histograms[accountflow.MetricSignInLatency]) == 0 {
		t.Fatal("expected sign-in latency histogram")
	}
}
