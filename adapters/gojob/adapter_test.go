package gojob

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-deployer/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

func TestDeployJobMessageRoundTrip(t *testing.T) {
	msg, err := NewDeployJobMessage(DeployJob{
		SiteURIs: []core.SiteURI{
			{SiteID: "1", Path: "/"},
			{SiteID: "2", Path: "/about"},
		},
		DedupPolicy: "drop",
	})
	if err != nil {
		t.Fatalf("new message: %v", err)
	}
	if msg.JobID != JobIDDeploy || msg.ScriptPath != ScriptPathDeploy {
		t.Fatalf("unexpected job identity %q %q", msg.JobID, msg.ScriptPath)
	}
	if msg.IdempotencyKey == "" {
		t.Fatalf("expected derived idempotency key")
	}

	decoded, err := DecodeDeployJob(msg)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded.SiteURIs) != 2 || decoded.SiteURIs[1].SiteID != "2" || decoded.SiteURIs[1].Path != "/about" {
		t.Fatalf("unexpected decoded uris %#v", decoded.SiteURIs)
	}
	if decoded.DedupPolicy != "drop" || decoded.IdempotencyKey != msg.IdempotencyKey {
		t.Fatalf("unexpected decoded metadata %#v", decoded)
	}
}

func TestDecodeDeployJob_AcceptsJSONShapedParameters(t *testing.T) {
	decoded, err := DecodeDeployJob(&job.ExecutionMessage{
		JobID: JobIDDeploy,
		Parameters: map[string]any{
			"site_uris": []any{map[string]any{"site_id": "7", "path": "/blog"}},
		},
	})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded.SiteURIs) != 1 || decoded.SiteURIs[0].SiteID != "7" {
		t.Fatalf("unexpected uris %#v", decoded.SiteURIs)
	}
}

func TestDecodeDeployJob_RejectsInvalidMessages(t *testing.T) {
	cases := map[string]*job.ExecutionMessage{
		"nil":        nil,
		"wrong job":  {JobID: "other.job"},
		"no uris":    {JobID: JobIDDeploy, Parameters: map[string]any{}},
		"bad shape":  {JobID: JobIDDeploy, Parameters: map[string]any{"site_uris": "nope"}},
		"no site id": {JobID: JobIDDeploy, Parameters: map[string]any{"site_uris": []any{map[string]any{"path": "/"}}}},
	}
	for name, msg := range cases {
		if _, err := DecodeDeployJob(msg); err == nil {
			t.Fatalf("%s: expected decode failure", name)
		}
	}
}

func TestDeployIdempotencyKeyIgnoresOrder(t *testing.T) {
	a := DeployIdempotencyKey([]core.SiteURI{{SiteID: "1", Path: "/"}, {SiteID: "2", Path: "/x"}})
	b := DeployIdempotencyKey([]core.SiteURI{{SiteID: "2", Path: "/x"}, {SiteID: "1", Path: "/"}})
	if a != b {
		t.Fatalf("expected order independent keys, got %q and %q", a, b)
	}
	c := DeployIdempotencyKey([]core.SiteURI{{SiteID: "1", Path: "/"}})
	if a == c {
		t.Fatalf("expected different page sets to differ")
	}
}

func TestEnqueueAndDequeueAdapters(t *testing.T) {
	ctx := context.Background()
	enqueuer := &stubQueueEnqueuer{}
	key, err := NewEnqueuerAdapter(enqueuer).EnqueueDeploy(ctx, DeployJob{
		SiteURIs:       []core.SiteURI{{SiteID: "1", Path: "/"}},
		IdempotencyKey: "idem-1",
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if key != "idem-1" || enqueuer.last == nil || enqueuer.last.JobID != JobIDDeploy {
		t.Fatalf("expected deploy message to be enqueued, key=%q", key)
	}

	if _, err := NewEnqueuerAdapter(enqueuer).EnqueueDeploy(ctx, DeployJob{}); err == nil {
		t.Fatalf("expected empty job to fail")
	}

	dequeuer := &stubQueueDequeuer{delivery: &stubQueueDelivery{msg: enqueuer.last}}
	delivery, err := NewDequeuerAdapter(dequeuer, RetryPolicy{}).Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if got := delivery.Message(); got == nil || got.JobID != JobIDDeploy {
		t.Fatalf("expected dequeued deploy message")
	}
	if err := delivery.Ack(ctx); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if !dequeuer.delivery.(*stubQueueDelivery).acked {
		t.Fatalf("expected ack on underlying delivery")
	}
}

func TestNackRetryPolicyBoundaries(t *testing.T) {
	ctx := context.Background()
	rawDelivery := &stubQueueDelivery{msg: &job.ExecutionMessage{JobID: JobIDDeploy}}
	adapter := NewDeliveryAdapter(rawDelivery, RetryPolicy{
		MaxAttempts:     3,
		MaxDelay:        10 * time.Second,
		DeadLetterOnMax: true,
	})

	if err := adapter.NackForAttempt(ctx, queue.NackOptions{
		Delay:  30 * time.Second,
		Reason: "transient",
	}, 1); err != nil {
		t.Fatalf("nack attempt 1: %v", err)
	}
	if rawDelivery.nackOpts.Delay != 10*time.Second {
		t.Fatalf("expected delay to be bounded, got %s", rawDelivery.nackOpts.Delay)
	}
	if rawDelivery.nackOpts.Disposition != queue.NackDispositionRetry {
		t.Fatalf("expected retry before max attempts, got %q", rawDelivery.nackOpts.Disposition)
	}

	if err := adapter.NackForAttempt(ctx, queue.NackOptions{Delay: time.Second, Disposition: queue.NackDispositionRetry}, 3); err != nil {
		t.Fatalf("nack max attempt: %v", err)
	}
	if rawDelivery.nackOpts.Disposition != queue.NackDispositionDeadLetter || rawDelivery.nackOpts.Delay != 0 {
		t.Fatalf("expected dead letter at max attempts, got %#v", rawDelivery.nackOpts)
	}

	failing := NewDeliveryAdapter(rawDelivery, RetryPolicy{MaxAttempts: 2})
	if err := failing.NackForAttempt(ctx, queue.NackOptions{}, 2); err != nil {
		t.Fatalf("nack without dead letter: %v", err)
	}
	if rawDelivery.nackOpts.Disposition != queue.NackDispositionFailed {
		t.Fatalf("expected failed disposition without dead lettering, got %q", rawDelivery.nackOpts.Disposition)
	}
}

func TestEnqueueDeployAfterUsesScheduledEnqueuer(t *testing.T) {
	ctx := context.Background()
	deployJob := DeployJob{SiteURIs: []core.SiteURI{{SiteID: "1", Path: "/"}}, PriorAttempts: 2}

	scheduled := &stubScheduledEnqueuer{}
	if _, err := NewEnqueuerAdapter(scheduled).EnqueueDeployAfter(ctx, deployJob, time.Minute); err != nil {
		t.Fatalf("enqueue after: %v", err)
	}
	if scheduled.delay != time.Minute || scheduled.last != nil || scheduled.scheduledMsg == nil {
		t.Fatalf("expected scheduled enqueue, got delay=%s", scheduled.delay)
	}
	decoded, err := DecodeDeployJob(scheduled.scheduledMsg)
	if err != nil || decoded.PriorAttempts != 2 {
		t.Fatalf("expected prior attempts to round trip, got %#v (%v)", decoded, err)
	}

	plain := &stubQueueEnqueuer{}
	if _, err := NewEnqueuerAdapter(plain).EnqueueDeployAfter(ctx, deployJob, time.Minute); err != nil {
		t.Fatalf("enqueue after on plain enqueuer: %v", err)
	}
	if plain.last == nil {
		t.Fatalf("expected immediate enqueue when scheduling is unsupported")
	}
}

func TestWorkerHookAdapterEventMapping(t *testing.T) {
	now := time.Now().UTC().Add(-time.Second)
	hook := &capturingHook{}
	adapter := NewWorkerHookAdapter(hook)

	adapter.OnRetry(context.Background(), worker.Event{
		Message:   &job.ExecutionMessage{JobID: JobIDDeploy, IdempotencyKey: "idem-2"},
		Attempt:   2,
		Delay:     5 * time.Second,
		Err:       errors.New("retry"),
		StartedAt: now,
		Duration:  250 * time.Millisecond,
	})
	got := hook.last
	if got.JobID != JobIDDeploy || got.IdempotencyKey != "idem-2" {
		t.Fatalf("expected message mapping, got %#v", got)
	}
	if got.Attempt != 2 || got.Delay != 5*time.Second || got.Duration != 250*time.Millisecond {
		t.Fatalf("expected timing mapping, got %#v", got)
	}
	if got.StartedAt.IsZero() || got.Err == nil || got.Err.Error() != "retry" {
		t.Fatalf("expected start and error mapping, got %#v", got)
	}
}

type stubQueueEnqueuer struct {
	last *job.ExecutionMessage
	err  error
}

func (s *stubQueueEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) (queue.EnqueueReceipt, error) {
	if s.err != nil {
		return queue.EnqueueReceipt{}, s.err
	}
	s.last = msg
	return queue.EnqueueReceipt{DispatchID: "dispatch_1"}, nil
}

type stubScheduledEnqueuer struct {
	stubQueueEnqueuer
	scheduledMsg *job.ExecutionMessage
	delay        time.Duration
}

func (s *stubScheduledEnqueuer) EnqueueAt(ctx context.Context, msg *job.ExecutionMessage, at time.Time) (queue.EnqueueReceipt, error) {
	return s.EnqueueAfter(ctx, msg, time.Until(at))
}

func (s *stubScheduledEnqueuer) EnqueueAfter(_ context.Context, msg *job.ExecutionMessage, delay time.Duration) (queue.EnqueueReceipt, error) {
	s.scheduledMsg = msg
	s.delay = delay
	return queue.EnqueueReceipt{DispatchID: "dispatch_2"}, nil
}

type stubQueueDequeuer struct {
	delivery queue.Delivery
}

func (s *stubQueueDequeuer) Dequeue(context.Context) (queue.Delivery, error) {
	return s.delivery, nil
}

type stubQueueDelivery struct {
	msg      *job.ExecutionMessage
	acked    bool
	nacked   bool
	nackOpts queue.NackOptions
}

func (s *stubQueueDelivery) Message() *job.ExecutionMessage {
	return s.msg
}

func (s *stubQueueDelivery) Ack(context.Context) error {
	s.acked = true
	return nil
}

func (s *stubQueueDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	s.nacked = true
	s.nackOpts = opts
	return nil
}

type capturingHook struct {
	last JobEvent
}

func (h *capturingHook) OnStart(context.Context, JobEvent)   {}
func (h *capturingHook) OnSuccess(context.Context, JobEvent) {}
func (h *capturingHook) OnFailure(context.Context, JobEvent) {}
func (h *capturingHook) OnRetry(_ context.Context, event JobEvent) {
	h.last = event
}
