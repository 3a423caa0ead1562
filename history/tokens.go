package history

import (
	"github.com/pkoukk/tiktoken-go"
)

// fallbackEncoding is used when the model is unknown to the tokenizer.
const fallbackEncoding = "cl100k_base"

// PromptTokens estimates how many tokens the history occupies when
// replayed into a prompt for the given model. The engine never truncates
// history; this estimate feeds growth warnings only.
func (h *History) PromptTokens(model string) int {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
	}

	count := func(s string) int {
		if err != nil || enc == nil {
			// Tokenizer data unavailable; fall back to the usual
			// four-bytes-per-token approximation.
			return (len(s) + 3) / 4
		}
		return len(enc.Encode(s, nil, nil))
	}

	total := 0
	for _, turn := range h.turns {
		total += count(turn.Message)
		if turn.Context != "" {
			total += count(turn.Context)
		}
		// Per-message framing overhead, mirroring chat format accounting.
		total += 4
	}
	return total
}
