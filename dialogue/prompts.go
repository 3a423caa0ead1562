package dialogue

import (
	"fmt"
	"strings"

	"github.com/eidoslabs/eidos/config"
	"github.com/eidoslabs/eidos/llm"
	"github.com/eidoslabs/eidos/retrieval"
	"github.com/eidoslabs/eidos/types"
)

// roleInstruction anchors every generation call. Topic and style
// instructions from the configuration are appended to it.
const roleInstruction = "You are Eidos, a Socratic guide for philosophical dialogue. " +
	"Help the user examine their beliefs by asking probing questions, surfacing hidden " +
	"assumptions, and testing the logical structure of their statements. Guide through " +
	"questions rather than lectures, and keep replies focused on the user's last statement."

// contextHeader prefixes a formatted retrieved-context block.
const contextHeader = "Use the following documents to answer the query."

const routeInstruction = "Decide whether answering the user's message requires consulting " +
	"the philosophical text corpus. Choose \"retrieval\" when the message makes claims that " +
	"should be checked against or enriched by source texts. Choose \"history_only\" for " +
	"greetings, meta questions, and statements the conversation alone can address."

const expandInstruction = "Rewrite the user's message as a standalone search query for " +
	"retrieving relevant philosophical texts. Resolve pronouns and implicit references " +
	"using the conversation so far, and add the key topic terms. Respond with the query " +
	"only, no commentary."

const qualityInstruction = "Assess the logical quality of the user's latest statement. " +
	"Classify it as consistent or inconsistent, taking into account the conversation so " +
	"far and any provided documents. When inconsistent, identify the type of inconsistency " +
	"and explain your reasoning."

// Exactly two question templates, selected on the classification enum.
const (
	consistentQuestionInstruction = "The user's statement is logically sound. Compose one " +
		"Socratic follow-up question that probes the statement more deeply: test its scope, " +
		"its consequences, or an assumption it rests on. Respond with the question only."

	inconsistentQuestionInstruction = "The user's statement has a logical flaw. Compose one " +
		"Socratic follow-up question that leads the user to discover the flaw themselves, " +
		"without naming it outright. Respond with the question only."
)

const answerInstructionTemplate = "Reply to the user's statement in your own voice. Weave " +
	"the following question into your reply so the conversation continues from it:\n%s"

// systemInstruction joins the role instruction with the configured topic
// and style steering, skipping empty parts.
func systemInstruction(cfg *config.DialogueConfig) string {
	parts := []string{roleInstruction}
	if cfg.TopicInstruction != "" {
		parts = append(parts, cfg.TopicInstruction)
	}
	if cfg.StyleInstruction != "" {
		parts = append(parts, cfg.StyleInstruction)
	}
	return strings.Join(parts, "\n")
}

// historyMessages replays the conversation into chat messages. Only the
// message text is replayed; retrieved context stays out of the transcript.
func historyMessages(turns []types.Turn) []llm.Message {
	messages := make([]llm.Message, 0, len(turns))
	for _, turn := range turns {
		switch turn.Speaker {
		case types.SpeakerUser:
			messages = append(messages, llm.NewUserMessage(turn.Message))
		case types.SpeakerAgent:
			messages = append(messages, llm.NewAssistantMessage(turn.Message))
		}
	}
	return messages
}

// buildMessages assembles system + history + user message in replay order.
func buildMessages(system string, turns []types.Turn, userMessage string) []llm.Message {
	messages := make([]llm.Message, 0, len(turns)+2)
	messages = append(messages, llm.NewSystemMessage(system))
	messages = append(messages, historyMessages(turns)...)
	messages = append(messages, llm.NewUserMessage(userMessage))
	return messages
}

// FormatContext renders retrieved passages into a single delimited block:
// a fixed header, then each passage wrapped in triple-quote delimiters,
// joined by blank lines. Passage order is preserved as returned by the
// retriever. An empty passage list yields the empty string, the sentinel
// for "no context".
func FormatContext(passages []retrieval.Passage) string {
	if len(passages) == 0 {
		return ""
	}
	blocks := make([]string, len(passages))
	for i, p := range passages {
		blocks[i] = fmt.Sprintf("Document %d:\n\n\"\"\"\n%s\n\"\"\"", i+1, p.Content)
	}
	return contextHeader + "\n\n" + strings.Join(blocks, "\n\n")
}
