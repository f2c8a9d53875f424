package memory

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendBound(t *testing.T) {
	c := NewConversation(3)
	for i := 0; i < 5; i++ {
		c.Append(RoleUser, fmt.Sprintf("q%d", i))
	}
	entries := c.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "q2", entries[0].Content)
	assert.Equal(t, "q4", entries[2].Content)
}

func TestSnapshotFreezesView(t *testing.T) {
	c := NewConversation(10)
	c.Append(RoleUser, "first question")
	c.Append(RoleAssistant, "first answer")

	c.Snapshot()
	c.Append(RoleUser, "what did I just ask?")

	view := c.View()
	require.Len(t, view, 2)
	last, ok := LastByRole(view, RoleUser)
	require.True(t, ok)
	assert.Equal(t, "first question", last.Content)

	// Live log still sees the new turn.
	assert.Equal(t, 3, c.Len())

	c.ClearSnapshot()
	view = c.View()
	require.Len(t, view, 3)
	last, ok = LastByRole(view, RoleUser)
	require.True(t, ok)
	assert.Equal(t, "what did I just ask?", last.Content)
}

func TestSnapshotReplaced(t *testing.T) {
	c := NewConversation(10)
	c.Append(RoleUser, "a")
	c.Snapshot()
	c.Append(RoleUser, "b")
	c.Snapshot()
	assert.Len(t, c.View(), 2)
}

func TestLastN(t *testing.T) {
	view := []Entry{
		{Role: RoleUser, Content: "a"},
		{Role: RoleAssistant, Content: "b"},
		{Role: RoleUser, Content: "c"},
	}
	assert.Len(t, LastN(view, 2), 2)
	assert.Equal(t, "c", LastN(view, 1)[0].Content)
	assert.Len(t, LastN(view, 10), 3)
	assert.Nil(t, LastN(view, 0))
	assert.Nil(t, LastN(nil, 2))
}

func TestUserQuestionsExcludesGreetings(t *testing.T) {
	view := []Entry{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello!"},
		{Role: RoleUser, Content: "what is the capital of France?"},
		{Role: RoleUser, Content: "Hello there"},
		{Role: RoleUser, Content: "and how big is it?"},
	}
	questions := UserQuestions(view)
	require.Len(t, questions, 2)
	assert.Equal(t, "what is the capital of France?", questions[0].Content)
	assert.Equal(t, "and how big is it?", questions[1].Content)
}

func TestIsGreeting(t *testing.T) {
	assert.True(t, IsGreeting("hi"))
	assert.True(t, IsGreeting("Hello!"))
	assert.True(t, IsGreeting("hey there"))
	assert.True(t, IsGreeting("hello good morning"))

	assert.False(t, IsGreeting("history of rome"))
	assert.False(t, IsGreeting("hi, what's the weather in Paris"))
	assert.False(t, IsGreeting("which city is hotter?"))
	assert.False(t, IsGreeting(""))
}
