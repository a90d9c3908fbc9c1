package voice_test

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/crowndesk/receptionist/internal/domain/entities"
	"github.com/crowndesk/receptionist/internal/voice"
)

// fakeConn is a script-driven transport. Tests push inbound frames and
// observe decoded outbound frames.
type fakeConn struct {
	inbound   chan []byte
	outbound  chan *voice.OutboundFrame
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound:  make(chan []byte, 16),
		outbound: make(chan *voice.OutboundFrame, 64),
		closed:   make(chan struct{}),
	}
}

func (c *fakeConn) ReadFrame() ([]byte, error) {
	select {
	case data := <-c.inbound:
		return data, nil
	case <-c.closed:
		return nil, io.EOF
	}
}

func (c *fakeConn) WriteFrame(data []byte) error {
	frame := &voice.OutboundFrame{}
	if err := json.Unmarshal(data, frame); err != nil {
		return err
	}
	select {
	case c.outbound <- frame:
	default:
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// push delivers one raw frame as if the platform sent it
func (c *fakeConn) push(data string) {
	c.inbound <- []byte(data)
}

type fakePlanner struct {
	planFunc func(call voice.CallContext, transcript []voice.Utterance, reminder bool) (*voice.TurnPlan, error)
}

func (p *fakePlanner) PlanTurn(_ context.Context, call voice.CallContext, transcript []voice.Utterance, reminder bool) (*voice.TurnPlan, error) {
	return p.planFunc(call, transcript, reminder)
}

type fakeDispatcher struct {
	dispatchFunc func(ctx context.Context, call voice.CallContext, invocationID, toolName string, args json.RawMessage) *voice.ToolOutcome
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, call voice.CallContext, invocationID, toolName string, args json.RawMessage) *voice.ToolOutcome {
	return d.dispatchFunc(ctx, call, invocationID, toolName, args)
}

// fakeRecorder captures everything a session writes to its durable log
type fakeRecorder struct {
	mu          sync.Mutex
	entries     []*entities.TranscriptEntry
	invocations []*entities.ToolInvocation
}

func (r *fakeRecorder) Append(entry *entities.TranscriptEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *fakeRecorder) RecordInvocation(invocation *entities.ToolInvocation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invocations = append(r.invocations, invocation)
}

func (r *fakeRecorder) sequences() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	seqs := make([]int64, 0, len(r.entries))
	for _, e := range r.entries {
		seqs = append(seqs, e.Sequence)
	}
	return seqs
}

func (r *fakeRecorder) contents() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Content)
	}
	return out
}

// fakeLifecycle hands out a fixed record id and reports how the call ended
type fakeLifecycle struct {
	recordID string
	ended    chan string
}

func newFakeLifecycle() *fakeLifecycle {
	return &fakeLifecycle{recordID: "rec-1", ended: make(chan string, 4)}
}

func (l *fakeLifecycle) CallStarted(_ context.Context, _ *entities.CallRecord) (string, error) {
	return l.recordID, nil
}

func (l *fakeLifecycle) CallEnded(_ context.Context, _, _, disconnectReason string, _, _ time.Time) error {
	select {
	case l.ended <- disconnectReason:
	default:
	}
	return nil
}
