package llm

import (
	"strings"

	"github.com/PabloGalante/supportchat/internal/domain"
)

// DefaultHistoryTurns is how many prior turns are rendered into the prompt.
const DefaultHistoryTurns = 10

const instructionBlock = `
You are "Farum Support", the customer support assistant for the Farum companion app.

Your role:
- You answer questions about the app, accounts, plans and common problems.
- You help the user get unstuck with clear, concrete steps.
- You are NOT a human agent and you cannot see or change account data, payments or settings.

Style guidelines:
- Answer in the SAME LANGUAGE as the user.
- Be concise: a short paragraph or a few bullet points.
- Use plain language, not internal jargon.
- If you are not sure, say so and suggest contacting a human through the support email.
- Ask at most one follow-up question.

Boundaries:
- Never ask for passwords, full card numbers or one-time codes.
- Never invent policies, prices or features that are not in the reference information.
- If the user describes an emergency or a risk to their safety, tell them to contact local emergency services.
`

const knowledgeBlock = `
Reference information:
- Support email: support@farum.app (answers within one business day).
- Plans: Free (check-in mode only) and Plus (all modes, journal export), billed monthly or yearly.
- Plus can be cancelled at any time from Settings > Subscription; access continues until the end of the paid period.
- Password reset: use "Forgot password" on the sign-in screen; the link expires after 30 minutes.
- Data export: Settings > Privacy > Export data produces a JSON archive sent by email.
- Account deletion: Settings > Privacy > Delete account; deletion is permanent after 14 days.
- Supported platforms: iOS 16+, Android 10+, and the web app on current Chrome, Firefox, Safari and Edge.
`

const (
	userLabel      = "User"
	assistantLabel = "Assistant"

	startOfConversation = "(This is the start of the conversation.)"
)

// Prompt represents the system prompt + the content to send as "user".
type Prompt struct {
	System string
	User   string
}

// Text returns the whole prompt as one block, for providers without a
// separate system channel.
func (p Prompt) Text() string {
	return p.System + "\n\n" + p.User
}

// BuildPrompt builds the system prompt (instructions + reference knowledge)
// and the user content (recent history + new message).
//
// Only the last maxTurns turns of history are rendered; older ones are
// dropped. maxTurns <= 0 means DefaultHistoryTurns.
func BuildPrompt(history []domain.Turn, newMessage string, maxTurns int) Prompt {
	if maxTurns <= 0 {
		maxTurns = DefaultHistoryTurns
	}
	if len(history) > maxTurns {
		history = history[len(history)-maxTurns:]
	}

	system := strings.TrimSpace(instructionBlock) + "\n\n" + strings.TrimSpace(knowledgeBlock)

	var userContent strings.Builder
	userContent.WriteString("Conversation so far:\n")
	userContent.WriteString(renderHistory(history))
	userContent.WriteString("\n\n")
	userContent.WriteString(userLabel + ": " + newMessage)
	userContent.WriteString("\n\n")
	userContent.WriteString(assistantLabel + ":")

	return Prompt{
		System: system,
		User:   userContent.String(),
	}
}

func renderHistory(history []domain.Turn) string {
	if len(history) == 0 {
		return startOfConversation
	}

	parts := make([]string, 0, len(history))
	for _, t := range history {
		parts = append(parts, roleLabel(t.Role)+": "+t.Content)
	}
	return strings.Join(parts, "\n\n")
}

func roleLabel(role domain.Role) string {
	if role == domain.RoleAssistant {
		return assistantLabel
	}
	return userLabel
}
