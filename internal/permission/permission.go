// Package permission decides what a tool call is allowed to do before it
// runs. Decisions come from two layers: the security policy engine, which
// can deny a call outright, and the interactive confirmation layer, which
// asks the user about everything the policy permits but does not
// pre-approve.
package permission

import "encoding/json"

// Decision is the outcome of a permission check.
type Decision int

const (
	// Allow runs the tool call without asking.
	Allow Decision = iota
	// Deny blocks the tool call. Denials are final and carry a reason.
	Deny
	// NeedConfirmation defers to the user.
	NeedConfirmation
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	case NeedConfirmation:
		return "confirm"
	}
	return "unknown"
}

// Result pairs a decision with the reason behind it. Reason is always set
// for Deny so the model and the audit log can see why a call was blocked;
// for Allow it is informational and may be empty.
type Result struct {
	Decision Decision
	Reason   string
}

// Policy is consulted by the tool executor before every tool call.
type Policy interface {
	// Check evaluates a tool call against the active policy.
	Check(toolName string, params json.RawMessage) Result
	// RememberApproval records a user's "always allow" answer for the
	// rest of the session.
	RememberApproval(toolName string, params json.RawMessage)
}
