package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/textbot/internal/actions"
	"github.com/textbot/internal/credentials"
	"github.com/textbot/internal/interpreter"
	"github.com/textbot/internal/provider_output/notion"
)

const (
	dailyLogTag   = "daily_log"
	maxTitleRunes = 20
)

// NotePages is the workspace the note executor writes to.
type NotePages interface {
	DatabaseTags(ctx context.Context, token, databaseID string) ([]string, error)
	CreatePage(ctx context.Context, token, databaseID string, note actions.NoteInput) (notion.Page, error)
}

// NoteExecutor saves the message as a tagged page in the user's Notion database.
type NoteExecutor struct {
	pages       NotePages
	gen         TextGenerator
	databaseID  string
	defaultTags []string
	loc         *time.Location
	now         func() time.Time
}

// NewNoteExecutor creates a NoteExecutor. databaseID is used when the credential does
// not name its own database; defaultTags when the database exposes none.
func NewNoteExecutor(pages NotePages, gen TextGenerator, databaseID string, defaultTags []string, loc *time.Location) *NoteExecutor {
	if loc == nil {
		loc = time.UTC
	}
	return &NoteExecutor{
		pages:       pages,
		gen:         gen,
		databaseID:  databaseID,
		defaultTags: defaultTags,
		loc:         loc,
		now:         time.Now,
	}
}

func (e *NoteExecutor) Execute(ctx context.Context, rawText string, cred credentials.Credential) (actions.Outcome, error) {
	databaseID := cred.Account
	if databaseID == "" {
		databaseID = e.databaseID
	}
	if databaseID == "" {
		return actions.Outcome{}, errors.New("no notion database configured")
	}

	vocabulary, err := e.pages.DatabaseTags(ctx, cred.Token, databaseID)
	if err != nil || len(vocabulary) == 0 {
		log.Debug().Err(err).Msg("Using default note tags")
		vocabulary = e.defaultTags
	}

	tag, err := e.chooseTag(ctx, rawText, vocabulary)
	if err != nil {
		return actions.Outcome{}, err
	}
	title, err := e.chooseTitle(ctx, rawText, tag)
	if err != nil {
		return actions.Outcome{}, err
	}

	note := actions.NoteInput{Title: title, Tag: tag, Content: rawText}
	page, err := e.pages.CreatePage(ctx, cred.Token, databaseID, note)
	if err != nil {
		return actions.Outcome{}, err
	}

	message := fmt.Sprintf("Saved note %q", note.Title)
	if note.Tag != "" {
		message += " tagged " + note.Tag
	}
	return actions.Outcome{Success: true, Message: message, ExternalRef: page.URL}, nil
}

// chooseTag asks the model for one tag out of the vocabulary. An answer outside the
// vocabulary leaves the note untagged.
func (e *NoteExecutor) chooseTag(ctx context.Context, text string, vocabulary []string) (string, error) {
	if len(vocabulary) == 0 {
		return "", nil
	}
	prompt := fmt.Sprintf("Choose the most appropriate tag for this text from these options: %s.\n"+
		"Text: %q\nReturn only the tag name, nothing else.", strings.Join(vocabulary, ", "), text)

	out, err := e.gen.GenerateText(ctx, prompt, interpreter.PersonaNone)
	if err != nil {
		return "", fmt.Errorf("choose tag: %w", err)
	}
	choice := cleanChoice(out)
	for _, tag := range vocabulary {
		if strings.EqualFold(tag, choice) {
			return tag, nil
		}
	}
	log.Debug().Str("choice", choice).Msg("Tag outside vocabulary, leaving note untagged")
	return "", nil
}

// chooseTitle dates daily logs and asks the model for a short title otherwise.
func (e *NoteExecutor) chooseTitle(ctx context.Context, text, tag string) (string, error) {
	if tag == dailyLogTag {
		return e.now().In(e.loc).Format("2006-01-02"), nil
	}
	prompt := fmt.Sprintf("Write a concise, descriptive title under %d characters for this text: %q\n"+
		"Return only the title, nothing else.", maxTitleRunes, text)

	out, err := e.gen.GenerateText(ctx, prompt, interpreter.PersonaNone)
	if err != nil {
		return "", fmt.Errorf("choose title: %w", err)
	}
	title := cleanChoice(out)
	if title == "" {
		title = strings.Join(strings.Fields(text), " ")
	}
	return capRunes(title, maxTitleRunes), nil
}

func capRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
