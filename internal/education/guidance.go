// Package education turns security decisions into user-facing guidance.
// The goal is to explain what tripped the policy without teaching the
// user how to evade it, so the content stays at the category level and
// never quotes matched patterns.
package education

import (
	"github.com/rampart-ai/rampart/internal/engine"
)

// categoryGuidance holds the per-category explanation shown to users.
type categoryGuidance struct {
	title   string
	content string
	items   []string
}

var guidanceByCategory = map[string]categoryGuidance{
	"prompt_injection": {
		title:   "Instruction conflict detected",
		content: "Your message appears to ask the assistant to ignore or replace its operating instructions. The assistant's instructions cannot be changed from the conversation.",
		items: []string{
			"State what you want to accomplish instead of how the assistant should reconfigure itself.",
			"Avoid phrases that reference system prompts or prior instructions.",
		},
	},
	"data_egress": {
		title:   "Sensitive data request detected",
		content: "Your message appears to request or contain sensitive data such as credentials, personal records, or bulk exports. The assistant cannot disclose or transmit this kind of data.",
		items: []string{
			"Remove credentials, keys, and personal identifiers from your message.",
			"For legitimate data access, use the authorized export tools for your account.",
		},
	},
	"protocol_tampering": {
		title:   "Restricted mode request detected",
		content: "Your message appears to ask the assistant to adopt an unrestricted persona or to bypass its safety behavior. These modes do not exist and requests for them are declined.",
		items: []string{
			"Ask your question directly without framing it as a roleplay or special mode.",
		},
	},
	"scope": {
		title:   "Out-of-scope operation detected",
		content: "Your message asks for an operation outside what this assistant is permitted to perform, such as executing system commands or modifying configuration.",
		items: []string{
			"Check the documentation for the operations this assistant supports.",
			"Contact an administrator for changes that require elevated access.",
		},
	},
	"multilingual": {
		title:   "Policy violation detected",
		content: "Your message appears to contain a request that violates the usage policy. Policy checks apply in every language.",
		items: []string{
			"Rephrase your request so its intent is clear and within policy.",
		},
	},
	"business_logic": {
		title:   "Unauthorized account operation detected",
		content: "Your message asks for an account or financial operation that cannot be performed through this channel, such as transfers, refunds, or permission changes.",
		items: []string{
			"Use the account dashboard for balance and permission changes.",
			"Contact support for refunds and transfers.",
		},
	},
}

var defaultGuidance = categoryGuidance{
	title:   "Request not permitted",
	content: "Your message was held by the security policy. If you believe this is a mistake, you can appeal the decision.",
	items: []string{
		"Rephrase your request and try again.",
	},
}

const appealInfo = "To appeal this decision, contact your administrator and reference the session ID shown in your client."

// Provider produces guidance messages for flagged and blocked
// decisions. Implements engine.GuidanceProvider.
type Provider struct{}

// NewProvider returns a guidance provider with the built-in content.
func NewProvider() *Provider {
	return &Provider{}
}

// Guidance returns a message for the decision, or nil for PASS.
func (p *Provider) Guidance(decision *engine.SecurityDecision, sessionID string) *engine.GuidanceMessage {
	if decision == nil || decision.Action == engine.ActionPass {
		return nil
	}

	g := guidanceForCategory(dominantCategory(decision))

	msg := &engine.GuidanceMessage{
		Title:       g.title,
		Content:     g.content,
		ActionItems: append([]string(nil), g.items...),
	}
	if decision.Action == engine.ActionBlock {
		msg.AppealInfo = appealInfo
	}
	return msg
}

// dominantCategory picks the category of the most severe detected
// pattern. Ties go to the first detected.
func dominantCategory(decision *engine.SecurityDecision) string {
	var (
		category string
		best     engine.Severity
	)
	for _, p := range decision.DetectedAttacks {
		if category == "" || p.Severity > best {
			category = p.Category
			best = p.Severity
		}
	}
	return category
}

func guidanceForCategory(category string) categoryGuidance {
	if g, ok := guidanceByCategory[category]; ok {
		return g
	}
	return defaultGuidance
}
