package redisstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/accountflow"
	"github.com/MrEthical07/accountflow/provider/memory"
	"github.com/MrEthical07/accountflow/provider/redisstore"
)

type stack struct {
	engine  *accountflow.Engine
	gateway *memory.Gateway
	guard   *redisstore.SignInGuard
	ledger  *redisstore.OrphanLedger
	mr      *miniredis.Miniredis
}

func newStack(t *testing.T, store accountflow.ProfileStore, ids ...string) *stack {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	gw, err := memory.NewGateway(memory.WithIDs(ids...))
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	guard, err := redisstore.NewSignInGuard(gw, rdb, "it", redisstore.GuardConfig{MaxAttempts: 3, Window: time.Minute})
	if err != nil {
		t.Fatalf("NewSignInGuard: %v", err)
	}
	if store == nil {
		store = redisstore.NewProfileStore(rdb, "it")
	}
	s := &stack{gateway: gw, guard: guard, ledger: redisstore.NewOrphanLedger(rdb, "it"), mr: mr}

	s.engine, err = accountflow.New().
		WithAuthGateway(guard).
		WithProfileStore(store).
		WithOrphanRecorder(s.ledger).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(s.engine.Close)
	return s
}

func form(email string) accountflow.AccountForm {
	b := time.Date(1988, 2, 29, 0, 0, 0, 0, time.UTC)
	return accountflow.AccountForm{
		Lastname:        "Doe",
		Firstname:       "Jane",
		Email:           email,
		Password:        "Sup3rSecret",
		ConfirmPassword: "Sup3rSecret",
		Birthdate:       &b,
		Gender:          accountflow.GenderFemale,
	}
}

func TestRedisStackCreateThenSignIn(t *testing.T) {
	s := newStack(t, nil, "u1")
	ctx := context.Background()

	out, err := s.engine.NewAccountOrchestrator().Run(ctx, form("jane@example.com"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, ok := out.Result.Value(); !ok {
		t.Fatalf("expected success, got %v", out.Result.Err())
	}
	if !s.mr.Exists("it:user:u1") {
		t.Fatal("profile not stored in redis")
	}

	sessions := s.engine.NewSessionOrchestrator()
	out, err = sessions.Run(ctx, accountflow.LoginForm{Email: "jane@example.com", Password: "Sup3rSecret"})
	if err != nil {
		t.Fatalf("Run sign-in: %v", err)
	}
	u, ok := out.Result.Value()
	if !ok || u.Firstname != "Jane" || !u.Birthdate.Equal(*form("").Birthdate) {
		t.Fatalf("unexpected sign-in output %+v", out)
	}
	if err := sessions.SignOut(ctx); err != nil {
		t.Fatalf("SignOut through guard: %v", err)
	}
	if _, ok := s.gateway.CurrentSession(); ok {
		t.Fatal("session should be cleared")
	}
}

func TestRedisStackLocksRepeatedFailures(t *testing.T) {
	s := newStack(t, nil, "u1")
	ctx := context.Background()
	if _, err := s.engine.NewAccountOrchestrator().Run(ctx, form("jane@example.com")); err != nil {
		t.Fatalf("Run: %v", err)
	}

	sessions := s.engine.NewSessionOrchestrator()
	bad := accountflow.LoginForm{Email: "jane@example.com", Password: "Wr0ngPassword"}
	for i := 0; i < 3; i++ {
		out, err := sessions.Run(ctx, bad)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if !errors.Is(out.Result.Err(), accountflow.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected invalid credentials, got %v", i, out.Result.Err())
		}
	}

	out, err := sessions.Run(ctx, accountflow.LoginForm{Email: "jane@example.com", Password: "Sup3rSecret"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !errors.Is(out.Result.Err(), accountflow.ErrAuthDefault) || out.SessionEstablished {
		t.Fatalf("expected locked sign-in, got %+v", out)
	}
}

func TestRedisStackRecordsOrphans(t *testing.T) {
	store := memory.NewStore()
	store.FailSave(accountflow.NewPersistenceError(accountflow.PersistenceInvalidUserData, errors.New("rejected")), 1)
	s := newStack(t, store, "u2")
	ctx := context.Background()

	out, err := s.engine.NewAccountOrchestrator().Run(ctx, form("orphan@example.com"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !errors.Is(out.Result.Err(), accountflow.ErrInvalidUserData) {
		t.Fatalf("expected invalid user data, got %v", out.Result.Err())
	}

	entries, err := s.ledger.Pending(ctx, 0)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(entries) != 1 || entries[0].IdentityID != "u2" || entries[0].Email != "orphan@example.com" {
		t.Fatalf("unexpected ledger %+v", entries)
	}
}
