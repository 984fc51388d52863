package chunker

import (
	"regexp"
	"strings"
)

// sentenceRe matches one sentence including its terminator.
var sentenceRe = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)

// splitSentences groups whole sentences into chunks with a token budget.
// Tokens are approximated by whitespace-separated words; a real
// cross-encoder tokenizer would run out of process, which this demo avoids.
// Adjacent chunks share trailing sentences totaling at most overlap tokens.
func splitSentences(text string, tokenBudget, overlap int) []string {
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		sentences = []string{trimmed}
	}
	for i := range sentences {
		sentences[i] = strings.TrimSpace(sentences[i])
	}

	var chunks []string
	var current []string
	currentTokens := 0

	for _, s := range sentences {
		n := len(strings.Fields(s))
		if currentTokens+n > tokenBudget && currentTokens > 0 {
			chunks = append(chunks, strings.Join(current, " "))

			// Carry trailing sentences within the overlap budget.
			var tail []string
			tailTokens := 0
			for i := len(current) - 1; i >= 0; i-- {
				tn := len(strings.Fields(current[i]))
				if tailTokens+tn > overlap {
					break
				}
				tail = append([]string{current[i]}, tail...)
				tailTokens += tn
			}
			current = tail
			currentTokens = tailTokens
		}
		current = append(current, s)
		currentTokens += n
	}
	if len(current) > 0 {
		chunk := strings.Join(current, " ")
		if len(chunks) == 0 || !strings.HasSuffix(chunks[len(chunks)-1], chunk) {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}
