package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/accountflow"
)

const loadPassword = "L0adTestPass"

type credential struct {
	email string
	id    accountflow.IdentityID
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

// runCreatePhase creates n accounts, one AccountOrchestrator per worker.
func runCreatePhase(ctx context.Context, engine *accountflow.Engine, n, concurrency int) ([]credential, phaseStats) {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, n)
		creds     = make([]credential, 0, n)
		birthdate = time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			orch := engine.NewAccountOrchestrator()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= n {
					return
				}
				email := fmt.Sprintf("load-%d@example.com", i)
				t0 := time.Now()
				out, err := orch.Run(ctx, accountflow.AccountForm{
					Lastname:        "Load",
					Firstname:       fmt.Sprintf("User%d", i),
					Email:           email,
					Password:        loadPassword,
					ConfirmPassword: loadPassword,
					Birthdate:       &birthdate,
					Gender:          accountflow.GenderOther,
				})
				d := time.Since(t0)

				mu.Lock()
				latencies = append(latencies, d)
				if err == nil && out.Result.OK() {
					creds = append(creds, credential{email: email, id: out.IdentityID})
				} else {
					failures++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return creds, computeStats(time.Since(start), latencies, failures)
}

func runSignInPhase(ctx context.Context, engine *accountflow.Engine, creds []credential, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			orch := engine.NewSessionOrchestrator()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				c := creds[r.Intn(len(creds))]
				t0 := time.Now()
				out, err := orch.Run(ctx, accountflow.LoginForm{Email: c.email, Password: loadPassword})
				d := time.Since(t0)
				if err != nil || !out.Result.OK() {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type burstStats struct {
	submitted int
	accepted  int
	rejected  int
}

// runBurstPhase double-submits the same form on one orchestrator, the way a
// repeated button tap would. Under the reject policy only one should run.
func runBurstPhase(ctx context.Context, engine *accountflow.Engine, bursts int) burstStats {
	var s burstStats
	for i := 0; i < bursts; i++ {
		orch := engine.NewSessionOrchestrator()
		form := accountflow.LoginForm{Email: fmt.Sprintf("burst-%d@example.com", i), Password: loadPassword}

		var pending []<-chan accountflow.Output
		for j := 0; j < 2; j++ {
			s.submitted++
			ch, err := orch.Submit(ctx, form)
			switch {
			case err == nil:
				s.accepted++
				pending = append(pending, ch)
			case errors.Is(err, accountflow.ErrSubmissionInFlight):
				s.rejected++
			}
		}
		for _, ch := range pending {
			<-ch
		}
	}
	return s
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
