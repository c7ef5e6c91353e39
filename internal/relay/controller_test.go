package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duplicator/internal/logger"
	apperrors "duplicator/pkg/errors"
	"duplicator/pkg/models"
)

type fakeDispatcher struct {
	mu       sync.Mutex
	payloads []Payload
	err      error
	panicOn  string
	block    chan struct{}
	started  chan struct{}
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, p Payload) error {
	if d.started != nil {
		d.started <- struct{}{}
	}
	if d.block != nil {
		select {
		case <-d.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if p.Content != nil && *p.Content == d.panicOn {
		panic("dispatcher exploded")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.payloads = append(d.payloads, p)
	return nil
}

func (d *fakeDispatcher) calls() []Payload {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Payload(nil), d.payloads...)
}

func (d *fakeDispatcher) setErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.RelayOutcomeEvent
	err    error
}

func (p *recordingPublisher) PublishOutcome(_ context.Context, e models.RelayOutcomeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func newTestController(t *testing.T, d Dispatcher, opts ...Option) *Controller {
	t.Helper()
	c, err := NewController(Config{TargetChannelID: "chanB"}, d, logger.NopLogger(), opts...)
	require.NoError(t, err)
	return c
}

func humanMessage(id, channel, text string) InboundMessage {
	return InboundMessage{
		ID:        id,
		ChannelID: channel,
		Author:    Author{ID: "u1", DisplayName: "alice#1234", AvatarURL: "https://cdn.example/a.png"},
		Content:   text,
	}
}

func TestController_RelaysAndRecords(t *testing.T) {
	d := &fakeDispatcher{}
	c := newTestController(t, d)
	msg := humanMessage("m1", "chanA", "hello")

	assert.True(t, ShouldForward(msg, FilterConfig{TargetChannelID: "chanB"}, NewRecencyCache(1)))
	assert.Equal(t, OutcomeRecorded, c.Handle(context.Background(), msg))

	calls := d.calls()
	require.Len(t, calls, 1)
	require.NotNil(t, calls[0].Content)
	assert.Equal(t, "hello", *calls[0].Content)
	assert.Empty(t, calls[0].Files)
	assert.Empty(t, calls[0].Embeds)
	assert.Equal(t, "alice#1234", calls[0].Username)
	assert.True(t, c.Forwarded("m1"))
}

func TestController_SecondDeliveryIsDropped(t *testing.T) {
	d := &fakeDispatcher{}
	c := newTestController(t, d)
	msg := humanMessage("m1", "chanA", "hello")

	require.Equal(t, OutcomeRecorded, c.Handle(context.Background(), msg))
	assert.Equal(t, OutcomeRejected, c.Handle(context.Background(), msg))

	assert.Len(t, d.calls(), 1)
}

func TestController_DestinationChannelNeverForwarded(t *testing.T) {
	d := &fakeDispatcher{}
	c := newTestController(t, d)

	assert.Equal(t, OutcomeRejected, c.Handle(context.Background(), humanMessage("m1", "chanB", "echo")))
	assert.Empty(t, d.calls())
	assert.False(t, c.Forwarded("m1"))
}

func TestController_AutomatedAuthorNeverForwarded(t *testing.T) {
	d := &fakeDispatcher{}
	c := newTestController(t, d)
	msg := humanMessage("m1", "chanA", "beep")
	msg.Author.Bot = true

	assert.Equal(t, OutcomeRejected, c.Handle(context.Background(), msg))
	assert.Empty(t, d.calls())
}

func TestController_DeliveryFailureDoesNotRecord(t *testing.T) {
	d := &fakeDispatcher{err: errors.New("connection reset")}
	c := newTestController(t, d)
	msg := humanMessage("m1", "chanA", "hello")

	assert.Equal(t, OutcomeDeliveryFailed, c.Handle(context.Background(), msg))
	assert.False(t, c.Forwarded("m1"))
	assert.Equal(t, 0, c.Stats().CacheSize)
	assert.Equal(t, 0, c.Stats().InFlight)

	d.setErr(nil)
	assert.Equal(t, OutcomeRecorded, c.Handle(context.Background(), msg))
	assert.True(t, c.Forwarded("m1"))
}

func TestController_AdaptFailureDoesNotRecord(t *testing.T) {
	d := &fakeDispatcher{}
	c := newTestController(t, d)
	msg := humanMessage("m1", "chanA", "")
	msg.Attachments = []Attachment{{Filename: "gone.png", Content: failingContent{err: errors.New("404")}}}

	assert.Equal(t, OutcomeAdaptFailed, c.Handle(context.Background(), msg))
	assert.Empty(t, d.calls())
	assert.False(t, c.Forwarded("m1"))
}

func TestController_DispatchTimeout(t *testing.T) {
	d := &fakeDispatcher{block: make(chan struct{})}
	c, err := NewController(Config{TargetChannelID: "chanB", DispatchTimeout: 20 * time.Millisecond}, d, logger.NopLogger())
	require.NoError(t, err)

	pub := &recordingPublisher{}
	c.publisher = pub

	assert.Equal(t, OutcomeDeliveryFailed, c.Handle(context.Background(), humanMessage("m1", "chanA", "slow")))
	assert.False(t, c.Forwarded("m1"))

	require.Len(t, pub.events, 1)
	assert.Contains(t, pub.events[0].Error, apperrors.ErrTimeout.Code)
}

func TestController_OverlappingDeliveriesDispatchOnce(t *testing.T) {
	d := &fakeDispatcher{block: make(chan struct{}), started: make(chan struct{}, 1)}
	c := newTestController(t, d)
	msg := humanMessage("m1", "chanA", "hello")

	first := make(chan Outcome, 1)
	go func() { first <- c.Handle(context.Background(), msg) }()

	<-d.started
	assert.Equal(t, 1, c.Stats().InFlight)
	assert.Equal(t, OutcomeRejected, c.Handle(context.Background(), msg))

	close(d.block)
	assert.Equal(t, OutcomeRecorded, <-first)
	assert.Len(t, d.calls(), 1)
	assert.Equal(t, 0, c.Stats().InFlight)
}

func TestController_Rules(t *testing.T) {
	d := &fakeDispatcher{}
	c, err := NewController(Config{
		TargetChannelID: "chanB",
		Rules:           []string{`!content.contains("skip")`},
	}, d, logger.NopLogger())
	require.NoError(t, err)

	assert.Equal(t, OutcomeRejected, c.Handle(context.Background(), humanMessage("m1", "chanA", "please skip")))
	assert.Equal(t, OutcomeRecorded, c.Handle(context.Background(), humanMessage("m2", "chanA", "keep")))
	assert.Len(t, d.calls(), 1)
	assert.Equal(t, 0, c.Stats().InFlight)
}

func TestController_OutcomeEvents(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	d := &fakeDispatcher{}
	c := newTestController(t, d, WithOutcomePublisher(pub))

	c.Handle(context.Background(), humanMessage("m1", "chanB", "rejected"))
	assert.Equal(t, OutcomeRecorded, c.Handle(context.Background(), humanMessage("m2", "chanA", "ok")))

	require.Len(t, pub.events, 1)
	assert.Equal(t, "m2", pub.events[0].MessageID)
	assert.Equal(t, "recorded", pub.events[0].Outcome)
	assert.NotEmpty(t, pub.events[0].TraceID)
	assert.Empty(t, pub.events[0].Error)
}

func TestNewController_Validation(t *testing.T) {
	_, err := NewController(Config{}, &fakeDispatcher{}, logger.NopLogger())
	assert.True(t, apperrors.IsConfig(err))

	_, err = NewController(Config{TargetChannelID: "b"}, nil, logger.NopLogger())
	assert.True(t, apperrors.IsConfig(err))

	_, err = NewController(Config{TargetChannelID: "b", Rules: []string{"1 +"}}, &fakeDispatcher{}, logger.NopLogger())
	assert.True(t, apperrors.IsConfig(err))

	c, err := NewController(Config{TargetChannelID: "b"}, &fakeDispatcher{}, logger.NopLogger())
	require.NoError(t, err)
	assert.Equal(t, 2000, c.Stats().CacheCapacity)
}

func TestController_Run(t *testing.T) {
	d := &fakeDispatcher{panicOn: "boom"}
	c := newTestController(t, d)

	events := make(chan InboundMessage, 8)
	events <- humanMessage("m1", "chanA", "first")
	events <- humanMessage("m2", "chanA", "boom")
	events <- humanMessage("m1", "chanA", "first again")
	events <- humanMessage("m3", "chanA", "third")
	close(events)

	require.NoError(t, c.Run(context.Background(), events))

	calls := d.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "first", *calls[0].Content)
	assert.Equal(t, "third", *calls[1].Content)

	stats := c.Stats()
	assert.Equal(t, int64(4), stats.Received)
	assert.Equal(t, int64(1), stats.Rejected)
	assert.Equal(t, int64(2), stats.Recorded)
	assert.Equal(t, int64(1), stats.Panics)
	assert.Equal(t, 0, stats.InFlight)
	assert.False(t, c.Forwarded("m2"))
}

func TestController_RunConcurrentWorkers(t *testing.T) {
	d := &fakeDispatcher{}
	c, err := NewController(Config{TargetChannelID: "chanB", Workers: 4, CacheCapacity: 100}, d, logger.NopLogger())
	require.NoError(t, err)

	events := make(chan InboundMessage)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, events) }()

	for round := 0; round < 3; round++ {
		for i := 0; i < 20; i++ {
			events <- humanMessage(fmt.Sprintf("m%d", i), "chanA", "x")
		}
	}

	assert.Eventually(t, func() bool {
		return c.Stats().Received == 60
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	assert.Len(t, d.calls(), 20)
	assert.Equal(t, 20, c.Stats().CacheSize)
}
