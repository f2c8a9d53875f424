package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"reagent/internal/memory"
)

// Fast paths answer common conversational queries without planning or
// tools: greetings, capability questions, and meta-questions about the
// conversation itself.

func (o *Orchestrator) tryFastPath(query string, start time.Time) (*Response, bool) {
	if memory.IsGreeting(query) {
		return o.fastResponse("greeting",
			"Hello! Ask me something and I will research, calculate, or look it up for you.",
			start), true
	}
	if isCapabilityQuery(query) {
		return o.fastResponse("capabilities", o.describeCapabilities(), start), true
	}
	if kind, ok := historyMetaKind(query); ok {
		return o.fastResponse("history", o.answerHistoryMeta(kind), start), true
	}
	return nil, false
}

func (o *Orchestrator) fastResponse(path, answer string, start time.Time) *Response {
	return &Response{
		Answer:     answer,
		Confidence: 1.0,
		FastPath:   path,
		DurationMS: float64(time.Since(start).Microseconds()) / 1000,
	}
}

var capabilityPhrases = []string{
	"what can you do",
	"what are you able to do",
	"what tools do you have",
	"what tools can you use",
	"your capabilities",
	"what do you know how to do",
}

func isCapabilityQuery(query string) bool {
	lower := strings.ToLower(strings.TrimSpace(query))
	// Bare "help" only; "help me find X" is a real request.
	if lower == "help" || lower == "help?" {
		return true
	}
	for _, phrase := range capabilityPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// describeCapabilities builds the self-description from the live hub
// inventory rather than a hardcoded list.
func (o *Orchestrator) describeCapabilities() string {
	inventory := o.hub.Inventory()
	if len(inventory) == 0 {
		return "I have no tools registered right now, but I can still reason about your question."
	}
	var b strings.Builder
	b.WriteString("I can use these tools:\n")
	for _, info := range inventory {
		fmt.Fprintf(&b, "- %s: %s\n", info.Name, info.Description)
	}
	return strings.TrimSpace(b.String())
}

type historyMeta int

const (
	historyLastQuestion historyMeta = iota
	historyCount
	historyList
)

func historyMetaKind(query string) (historyMeta, bool) {
	lower := strings.ToLower(query)
	switch {
	case strings.Contains(lower, "how many questions"):
		return historyCount, true
	case strings.Contains(lower, "list my questions"),
		strings.Contains(lower, "what questions have i asked"),
		strings.Contains(lower, "what have i asked"):
		return historyList, true
	case strings.Contains(lower, "what did i just ask"),
		strings.Contains(lower, "what did i ask"),
		strings.Contains(lower, "my last question"),
		strings.Contains(lower, "my previous question"):
		return historyLastQuestion, true
	}
	return 0, false
}

// answerHistoryMeta computes history answers from the live log,
// counting only substantive questions (greetings excluded).
func (o *Orchestrator) answerHistoryMeta(kind historyMeta) string {
	questions := memory.UserQuestions(o.conv.Entries())
	switch kind {
	case historyCount:
		switch len(questions) {
		case 0:
			return "You have not asked any questions yet."
		case 1:
			return "You have asked 1 question so far."
		default:
			return fmt.Sprintf("You have asked %d questions so far.", len(questions))
		}
	case historyList:
		if len(questions) == 0 {
			return "You have not asked any questions yet."
		}
		var b strings.Builder
		b.WriteString("Your questions so far:\n")
		for i, q := range questions {
			fmt.Fprintf(&b, "%d. %s\n", i+1, q.Content)
		}
		return strings.TrimSpace(b.String())
	default:
		if len(questions) == 0 {
			return "You have not asked anything yet."
		}
		return fmt.Sprintf("You just asked: %q", questions[len(questions)-1].Content)
	}
}
