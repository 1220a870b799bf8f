package telegram

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"spacebot/internal/transport"
)

func TestMarkdownToHTML(t *testing.T) {
	require.Equal(t, "HQ is <b>open</b> (pizza &amp; beer)", markdownToHTML("HQ is **open** (pizza & beer)"))
	require.Equal(t, "a ** b", markdownToHTML("a ** b"))
	require.Equal(t, "&lt;b&gt;", markdownToHTML("<b>"))
}

func TestClassify(t *testing.T) {
	ev, ok := classify(&tele.Message{
		ID:     42,
		Chat:   &tele.Chat{ID: -100123},
		Sender: &tele.User{ID: 7},
		Text:   "!space",
	})
	require.True(t, ok)
	require.Equal(t, transport.Event{Kind: transport.EventMessage, Room: "-100123", ID: "42", Sender: "7", Text: "!space"}, ev)

	_, ok = classify(&tele.Message{ID: 1, Chat: &tele.Chat{ID: 1}})
	require.False(t, ok)
	_, ok = classify(nil)
	require.False(t, ok)
}

func TestSplitTextPrefersNewlines(t *testing.T) {
	line := strings.Repeat("x", 30)
	s := strings.Join([]string{line, line, line, line}, "\n")

	chunks := splitText(s, 70, "")
	require.Len(t, chunks, 2)
	require.Equal(t, line+"\n"+line, chunks[0])
	require.Equal(t, line+"\n"+line, chunks[1])
}

func TestSplitTextShortIsSingleChunk(t *testing.T) {
	require.Equal(t, []string{"hi"}, splitText("hi", 10, "HTML"))
}

func TestSplitTextDoesNotCutTags(t *testing.T) {
	s := strings.Repeat("a", 8) + "<b>bold</b>"
	chunks := splitText(s, 10, "HTML")
	require.Equal(t, strings.Repeat("a", 8), chunks[0])
	require.True(t, strings.HasPrefix(chunks[1], "<b>"))
}
