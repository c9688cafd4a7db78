package agent

import (
	"fmt"
	"strings"

	"github.com/codemend/codemend/internal/llm"
	"github.com/codemend/codemend/internal/retrieve"
)

// defaultSystemPrompt is used when no override is configured.
const defaultSystemPrompt = `You are Codemend, a coding assistant. Answer questions about the project precisely and concisely, grounding answers in the provided file snippets when they are relevant.`

const repairSystemPrompt = `You are Codemend, an automated code repair assistant. You receive failing code and the diagnostic output of its test run. Return the corrected code in a single fenced code block. Do not explain; return only the code.`

func buildSystemPrompt(override string) string {
	if strings.TrimSpace(override) != "" {
		return override
	}
	return defaultSystemPrompt
}

// snippetMessages renders retrieval hits as fill-tier messages, least
// relevant first so budget pressure sheds them before better matches.
func snippetMessages(snippets []retrieve.Snippet) []llm.Message {
	out := make([]llm.Message, 0, len(snippets))
	for i := len(snippets) - 1; i >= 0; i-- {
		s := snippets[i]
		out = append(out, llm.Message{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf("Relevant file %s:\n%s", s.Path, s.Content),
		})
	}
	return out
}

// buildRepairPrompt combines the verification diagnostic with the current
// code for one generation attempt.
func buildRepairPrompt(code, diagnostic string) []llm.Message {
	var b strings.Builder
	b.WriteString("The following code fails verification.\n\nDiagnostic:\n")
	if strings.TrimSpace(diagnostic) == "" {
		b.WriteString("(no diagnostic output)\n")
	} else {
		b.WriteString(diagnostic)
		if !strings.HasSuffix(diagnostic, "\n") {
			b.WriteString("\n")
		}
	}
	b.WriteString("\nCode:\n```\n")
	b.WriteString(code)
	if !strings.HasSuffix(code, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("```\n\nReturn the fixed code.")

	return []llm.Message{
		{Role: llm.RoleSystem, Content: repairSystemPrompt},
		{Role: llm.RoleUser, Content: b.String()},
	}
}
