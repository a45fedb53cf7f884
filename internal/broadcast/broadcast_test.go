package broadcast

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textbot/internal/actions"
	"github.com/textbot/internal/interpreter"
	"github.com/textbot/internal/users"
)

type fakeGenerator struct {
	failFor   string
	transient int
	prompts   []string
	personas []interpreter.Persona
}

func (g *fakeGenerator) GenerateText(_ context.Context, prompt string, persona interpreter.Persona) (string, error) {
	g.prompts = append(g.prompts, prompt)
	g.personas = append(g.personas, persona)
	if g.failFor != "" && strings.Contains(prompt, g.failFor) {
		return "", errors.New("model unavailable")
	}
	if g.transient > 0 {
		g.transient--
		return "", errors.New("API returned unexpected status code: 503")
	}
	return "How was the trail today?", nil
}

type sentMessage struct {
	user    actions.UserID
	message string
}

type fakeNotifier struct{ sent []sentMessage }

func (n *fakeNotifier) Send(_ context.Context, user actions.UserID, message string) error {
	n.sent = append(n.sent, sentMessage{user, message})
	return nil
}

func newDirectory() *users.MemoryDirectory {
	return users.NewMemoryDirectory(
		users.User{ID: "+15550000001", Interests: []string{"hiking", "tea"}, Persona: "uncle_iroh"},
		users.User{ID: "+15550000002", Interests: []string{"chess"}, Persona: "schmidt"},
	)
}

func newBroadcaster(gen *fakeGenerator, n *fakeNotifier) *Broadcaster {
	b := New(newDirectory(), gen, n)
	b.retry.BaseDelay = time.Millisecond
	b.retry.MaxDelay = time.Millisecond
	b.retry.LogRetries = false
	return b
}

func TestRunSendsToEveryUser(t *testing.T) {
	gen := &fakeGenerator{}
	n := &fakeNotifier{}

	res, err := New(newDirectory(), gen, n).Run(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, Result{Sent: 2}, res)
	assert.Equal(t, []sentMessage{
		{"+15550000001", "How was the trail today?"},
		{"+15550000002", "How was the trail today?"},
	}, n.sent)
	assert.Contains(t, gen.prompts[0], "hiking, tea")
	assert.Equal(t, []interpreter.Persona{interpreter.PersonaUncleIroh, interpreter.PersonaSchmidt}, gen.personas)
}

func TestRunContinuesPastFailures(t *testing.T) {
	gen := &fakeGenerator{failFor: "hiking"}
	n := &fakeNotifier{}

	res, err := New(newDirectory(), gen, n).Run(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, Result{Sent: 1, Failed: 1}, res)
	require.Len(t, n.sent, 1)
	assert.Equal(t, actions.UserID("+15550000002"), n.sent[0].user)
}

func TestRunOnlyOneUser(t *testing.T) {
	n := &fakeNotifier{}
	res, err := New(newDirectory(), &fakeGenerator{}, n).Run(context.Background(), "+15550000002")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.Len(t, n.sent, 1)

	_, err = New(newDirectory(), &fakeGenerator{}, n).Run(context.Background(), "+19999999999")
	assert.ErrorIs(t, err, users.ErrNotFound)
}

func TestSendOpenerRetriesTransientFailures(t *testing.T) {
	gen := &fakeGenerator{transient: 2}
	n := &fakeNotifier{}

	res, err := newBroadcaster(gen, n).Run(context.Background(), "+15550000001")
	require.NoError(t, err)
	assert.Equal(t, Result{Sent: 1}, res)
	assert.Len(t, gen.prompts, 3)
}

func TestSendOpenerDoesNotRetryPermanentFailures(t *testing.T) {
	gen := &fakeGenerator{failFor: "chess"}
	n := &fakeNotifier{}

	res, err := newBroadcaster(gen, n).Run(context.Background(), "+15550000002")
	require.NoError(t, err)
	assert.Equal(t, Result{Failed: 1}, res)
	assert.Len(t, gen.prompts, 1)
	assert.Empty(t, n.sent)
}
