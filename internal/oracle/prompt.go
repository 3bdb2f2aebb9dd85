// Package oracle turns roll results into narrative-continuation
// prompts and submits them to a completion backend. The engine never
// depends on this package; hosts opt in through configuration.
package oracle

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cory-johannsen/fable/internal/engine/roll"
)

// systemPrompt frames the completion as an impartial story oracle.
const systemPrompt = `You are a story oracle for a tabletop campaign. ` +
	`You are given the outcomes of random table rolls and the current story ` +
	`variables. Weave the outcomes into a short narrative continuation, in ` +
	`second person, without inventing rolls that did not happen. Keep it ` +
	`under three paragraphs.`

// Query is one oracle request: the rolls to narrate, the story
// variables in scope, and an optional free-form question from the
// player.
type Query struct {
	StoryID   string
	Results   []*roll.TableResult
	Variables map[string]any
	Question  string
}

// BuildPrompt assembles the system and user messages for q. Linked
// results are rendered indented beneath their primary so the model sees
// the causal chain.
func BuildPrompt(q Query) (system, user string) {
	var b strings.Builder

	if len(q.Variables) > 0 {
		b.WriteString("Story variables:\n")
		keys := make([]string, 0, len(q.Variables))
		for k := range q.Variables {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %v\n", k, q.Variables[k])
		}
		b.WriteString("\n")
	}

	b.WriteString("Roll outcomes:\n")
	for _, res := range q.Results {
		writeResult(&b, res, 0)
	}

	if q.Question != "" {
		fmt.Fprintf(&b, "\nQuestion: %s\n", q.Question)
	}

	return systemPrompt, b.String()
}

func writeResult(b *strings.Builder, res *roll.TableResult, indent int) {
	prefix := strings.Repeat("  ", indent)
	fmt.Fprintf(b, "%s- [%s, rolled %d] %s\n", prefix, res.TableID, res.Roll, res.Description)
	for _, linked := range res.Linked {
		writeResult(b, linked, indent+1)
	}
}
