package interpreter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type fakeModel struct {
	err      error
	calls    int
	messages [][]llms.MessageContent
}

func (m *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.calls++
	m.messages = append(m.messages, messages)
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "NOTE"}}}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func newTestConnector(m *fakeModel) *Connector {
	return &Connector{provider: ProviderOpenAI, llm: m}
}

func TestConnectorSendsSystemAndHumanMessages(t *testing.T) {
	m := &fakeModel{}
	out, err := newTestConnector(m).Generate(context.Background(), "be brief", "hello")
	require.NoError(t, err)
	assert.Equal(t, "NOTE", out)

	require.Len(t, m.messages, 1)
	require.Len(t, m.messages[0], 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, m.messages[0][0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, m.messages[0][1].Role)
}

func TestConnectorSinglePromptAndErrors(t *testing.T) {
	m := &fakeModel{}
	out, err := newTestConnector(m).Generate(context.Background(), "", "hello")
	require.NoError(t, err)
	assert.Equal(t, "NOTE", out)
	require.Len(t, m.messages[0], 1)
	assert.Equal(t, llms.ChatMessageTypeHuman, m.messages[0][0].Role)

	// one call, no retry, even for a transient-looking failure
	m = &fakeModel{err: errors.New("API returned unexpected status code: 503")}
	_, err = newTestConnector(m).Generate(context.Background(), "system", "hello")
	assert.ErrorContains(t, err, "503")
	assert.Equal(t, 1, m.calls)
}

func TestNewConnectorRejectsUnknownProvider(t *testing.T) {
	_, err := NewConnector(context.Background(), ConnectorOptions{Provider: "mystery"})
	assert.Error(t, err)
}
