package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textbot/internal/actions"
	"github.com/textbot/internal/credentials"
	"github.com/textbot/internal/executor"
	"github.com/textbot/internal/interpreter"
	"github.com/textbot/internal/provider_output/gcal"
)

const user = actions.UserID("+15551234567")

type fixedClassifier actions.Kind

func (c fixedClassifier) Classify(context.Context, string) actions.Kind { return actions.Kind(c) }

type panickingClassifier struct{}

func (panickingClassifier) Classify(context.Context, string) actions.Kind { panic("classifier exploded") }

type fakeResolver struct {
	cred  credentials.Credential
	ok    bool
	calls int
}

func (r *fakeResolver) Resolve(context.Context, actions.UserID, actions.Kind) (credentials.Credential, bool) {
	r.calls++
	return r.cred, r.ok
}

type fakeExecutor struct {
	outcome actions.Outcome
	err     error
	panics  bool
	calls   int
}

func (e *fakeExecutor) Execute(context.Context, string, credentials.Credential) (actions.Outcome, error) {
	e.calls++
	if e.panics {
		panic("executor exploded")
	}
	return e.outcome, e.err
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (n *recordingNotifier) Send(_ context.Context, _ actions.UserID, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return n.err
}

type harness struct {
	note, calendar, habit *fakeExecutor
	resolver              *fakeResolver
	notifier              *recordingNotifier
}

func newHarness() *harness {
	return &harness{
		note:     &fakeExecutor{outcome: actions.Outcome{Success: true, Message: "Saved note"}},
		calendar: &fakeExecutor{outcome: actions.Outcome{Success: true, Message: "Added event"}},
		habit:    &fakeExecutor{outcome: actions.Outcome{Success: true, Message: "Logged"}},
		resolver: &fakeResolver{cred: credentials.Static("secret", ""), ok: true},
		notifier: &recordingNotifier{},
	}
}

func (h *harness) dispatcher(classifier Classifier) *Dispatcher {
	return New(classifier, h.resolver, Executors{Note: h.note, Calendar: h.calendar, Habit: h.habit},
		h.notifier, Timeouts{Action: time.Second, Notify: time.Second})
}

func (h *harness) executorCalls() int {
	return h.note.calls + h.calendar.calls + h.habit.calls
}

// garbageGenerator answers every classification with something that is not a label.
type garbageGenerator struct {
	out string
	err error
}

func (g garbageGenerator) Generate(context.Context, string, string) (string, error) { return g.out, g.err }

func TestUnrecognizedClassifierOutput(t *testing.T) {
	outputs := []garbageGenerator{
		{out: ""},
		{out: "   "},
		{out: "I'm not sure what you mean"},
		{out: "NOTE, CALENDAR"},
		{out: `{"kind":"NOTE"}`},
		{err: errors.New("service unavailable")},
	}

	for _, gen := range outputs {
		h := newHarness()
		in := interpreter.New(gen, time.UTC, time.Second)

		out := h.dispatcher(in).Handle(context.Background(), user, "blah")

		assert.False(t, out.Success)
		assert.Equal(t, MsgUnrecognized, out.Message)
		assert.Zero(t, h.executorCalls())
		assert.Zero(t, h.resolver.calls)
		assert.Equal(t, []string{MsgUnrecognized}, h.notifier.messages)
	}
}

func TestMissingCredentialSkipsExecutors(t *testing.T) {
	for _, kind := range actions.Kinds {
		h := newHarness()
		h.resolver.ok = false

		out := h.dispatcher(fixedClassifier(kind)).Handle(context.Background(), user, "anything")

		assert.False(t, out.Success)
		assert.Equal(t, MsgNoCredential, out.Message)
		assert.Contains(t, out.Message, "registered")
		assert.Zero(t, h.executorCalls())
		assert.Equal(t, []string{MsgNoCredential}, h.notifier.messages)
	}
}

func TestRoutesEachKindToItsExecutor(t *testing.T) {
	h := newHarness()
	h.dispatcher(fixedClassifier(actions.KindNote)).Handle(context.Background(), user, "x")
	h.dispatcher(fixedClassifier(actions.KindCalendar)).Handle(context.Background(), user, "x")
	h.dispatcher(fixedClassifier(actions.KindHabit)).Handle(context.Background(), user, "x")

	assert.Equal(t, 1, h.note.calls)
	assert.Equal(t, 1, h.calendar.calls)
	assert.Equal(t, 1, h.habit.calls)
	assert.Equal(t, []string{"Saved note", "Added event", "Logged"}, h.notifier.messages)
}

func TestServiceErrorSurfacesServiceMessage(t *testing.T) {
	h := newHarness()
	h.note.err = &actions.ServiceError{Service: "notion", Status: 400, Message: "Tags is not a property that exists."}

	out := h.dispatcher(fixedClassifier(actions.KindNote)).Handle(context.Background(), user, "x")

	assert.False(t, out.Success)
	assert.Contains(t, out.Message, "Tags is not a property that exists.")
	require.Len(t, h.notifier.messages, 1)
	assert.Equal(t, out.Message, h.notifier.messages[0])
}

func TestExecutorErrorBecomesFailedOutcome(t *testing.T) {
	h := newHarness()
	h.habit.err = errors.New("choose habit: rate limited")

	out := h.dispatcher(fixedClassifier(actions.KindHabit)).Handle(context.Background(), user, "x")
	assert.False(t, out.Success)
	assert.Equal(t, "choose habit: rate limited", out.Message)
	assert.Len(t, h.notifier.messages, 1)
}

func TestPanicsAreRecovered(t *testing.T) {
	h := newHarness()
	h.calendar.panics = true

	var out actions.Outcome
	require.NotPanics(t, func() {
		out = h.dispatcher(fixedClassifier(actions.KindCalendar)).Handle(context.Background(), user, "x")
	})
	assert.False(t, out.Success)
	assert.Equal(t, MsgInternalFailure, out.Message)
	assert.Equal(t, []string{MsgInternalFailure}, h.notifier.messages)

}

func TestClassifierPanicTakesUnknownPath(t *testing.T) {
	h := newHarness()

	var out actions.Outcome
	require.NotPanics(t, func() {
		out = h.dispatcher(panickingClassifier{}).Handle(context.Background(), user, "x")
	})
	assert.False(t, out.Success)
	assert.Equal(t, MsgUnrecognized, out.Message)
	assert.Equal(t, []string{MsgUnrecognized}, h.notifier.messages)
	assert.Zero(t, h.resolver.calls)
	assert.Zero(t, h.note.calls+h.calendar.calls+h.habit.calls)
}

func TestNotifierFailureIsNotPropagated(t *testing.T) {
	h := newHarness()
	h.notifier.err = errors.New("textbelt down")

	out := h.dispatcher(fixedClassifier(actions.KindNote)).Handle(context.Background(), user, "x")
	assert.True(t, out.Success)
	assert.Len(t, h.notifier.messages, 1)
}

func TestDisabledExecutor(t *testing.T) {
	h := newHarness()
	d := New(fixedClassifier(actions.KindHabit), h.resolver, Executors{Note: h.note}, h.notifier, Timeouts{})

	out := d.Handle(context.Background(), user, "x")
	assert.False(t, out.Success)
	assert.Equal(t, "HABIT actions are not enabled", out.Message)
	assert.Len(t, h.notifier.messages, 1)
}

// scenarioGenerator plays the model for a calendar request: it labels the message and
// then returns the event wrapped in prose.
type scenarioGenerator struct{}

func (scenarioGenerator) Generate(_ context.Context, system, _ string) (string, error) {
	if strings.Contains(system, "route text messages") {
		return "CALENDAR", nil
	}
	return `Sure! {"summary":"Call mom","start":"2025-11-21T15:00:00","end":"2025-11-21T15:30:00","description":"call mom"} Hope that helps!`, nil
}

type recordingEvents struct {
	calls int
	token string
	input actions.CalendarInput
}

func (r *recordingEvents) InsertEvent(_ context.Context, token string, in actions.CalendarInput) (gcal.Event, error) {
	r.calls++
	r.token = token
	r.input = in
	return gcal.Event{ID: "evt-1", HTMLLink: "https://www.google.com/calendar/event?eid=evt1"}, nil
}

func TestCalendarScenario(t *testing.T) {
	ctx := context.Background()
	in := interpreter.New(scenarioGenerator{}, time.UTC, time.Second)

	store := credentials.NewStore(credentials.NewMemoryBackend(), nil, time.Minute, time.Second)
	require.NoError(t, store.Register(ctx, user, actions.KindCalendar,
		credentials.Renewable("access-1", "refresh-1", "https://oauth2.example/token", time.Now().Add(time.Hour))))

	events := &recordingEvents{}
	notes := &fakeExecutor{}
	n := &recordingNotifier{}
	d := New(in, store, Executors{
		Note:     notes,
		Calendar: executor.NewCalendarExecutor(in, events),
	}, n, Timeouts{Action: time.Second, Notify: time.Second})

	out := d.Handle(ctx, user, "remind me to call mom tomorrow at 3pm")

	assert.True(t, out.Success)
	assert.Equal(t, "https://www.google.com/calendar/event?eid=evt1", out.ExternalRef)
	assert.Equal(t, 1, events.calls)
	assert.Equal(t, "access-1", events.token)
	assert.Equal(t, "Call mom", events.input.Summary)
	assert.True(t, time.Date(2025, 11, 21, 15, 0, 0, 0, time.UTC).Equal(events.input.Start))
	assert.Zero(t, notes.calls)

	require.Len(t, n.messages, 1)
	assert.Contains(t, n.messages[0], "https://www.google.com/calendar/event?eid=evt1")
}
