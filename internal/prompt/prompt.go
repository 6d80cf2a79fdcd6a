// Package prompt builds the answer-generation prompt from the fused context.
package prompt

import (
	"fmt"

	"github.com/fplanalytics/graphrag/internal/intent"
)

const systemTemplate = `You are an expert Fantasy Premier League (FPL) Assistant.

Your Task: Answer the user's question strictly based on the provided Context.
User Intent: %s

Context:
%s

Guidelines:
1. Be helpful, concise, and enthusiastic (like a football commentator).
2. If the answer is not in the context, admit you don't know.
3. Use bolding for player names and key stats.
4. If recommending players, explain WHY based on stats.`

// Build assembles the full prompt handed to the answer generator.
func Build(userQuery, contextBlock string, tag intent.Tag) string {
	system := fmt.Sprintf(systemTemplate, tag, contextBlock)
	return fmt.Sprintf("User Query: %s\n\nSystem Instructions: %s", userQuery, system)
}
