package accountflow

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// OutputSink receives every terminal Output produced by the engine's
// orchestrators, in addition to the per-submission channel. Deliver runs on
// the dispatcher goroutine.
type OutputSink interface {
	Deliver(ctx context.Context, out Output)
}

// NoOpSink discards outputs.
type NoOpSink struct{}

func (NoOpSink) Deliver(context.Context, Output) {}

// SinkFunc adapts a function to OutputSink.
type SinkFunc func(ctx context.Context, out Output)

func (f SinkFunc) Deliver(ctx context.Context, out Output) { f(ctx, out) }

// ChannelSink writes outputs into a buffered channel. When the channel is
// full it waits for the reader until ctx is done, then drops the output.
type ChannelSink struct {
	outputs chan Output
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		outputs: make(chan Output, buffer),
	}
}

func (s *ChannelSink) Deliver(ctx context.Context, out Output) {
	select {
	case s.outputs <- out:
		return
	default:
	}
	select {
	case s.outputs <- out:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Outputs() <-chan Output {
	return s.outputs
}

// MultiSink fans an output out to every sink in order.
type MultiSink []OutputSink

func (m MultiSink) Deliver(ctx context.Context, out Output) {
	for _, s := range m {
		if s != nil {
			s.Deliver(ctx, out)
		}
	}
}

// outputRecord is the line format of JSONWriterSink.
type outputRecord struct {
	SubmissionID       string    `json:"submission_id"`
	Flow               Flow      `json:"flow"`
	Success            bool      `json:"success"`
	Error              string    `json:"error,omitempty"`
	IdentityID         string    `json:"identity_id,omitempty"`
	Orphaned           bool      `json:"orphaned,omitempty"`
	SessionEstablished bool      `json:"session_established,omitempty"`
	User               *User     `json:"user,omitempty"`
	CompletedAt        time.Time `json:"completed_at"`
}

// JSONWriterSink writes one JSON object per output line. Only error codes are
// written, never error causes.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Deliver(_ context.Context, out Output) {
	if s == nil || s.writer == nil {
		return
	}
	rec := outputRecord{
		SubmissionID:       out.SubmissionID,
		Flow:               out.Flow,
		Success:            out.Result.OK(),
		Error:              ErrorCode(out.Result.Err()),
		IdentityID:         out.IdentityID.String(),
		Orphaned:           out.Orphaned,
		SessionEstablished: out.SessionEstablished,
		CompletedAt:        out.CompletedAt,
	}
	if u, ok := out.Result.Value(); ok {
		rec.User = &u
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
