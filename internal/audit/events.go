package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/nacmval/internal/nacm"
)

// Event is one decision audit record.
type Event struct {
	// ID is a unique identifier for the event.
	ID string `json:"id"`

	// Timestamp is when the decision was made.
	Timestamp time.Time `json:"timestamp"`

	// User is the requesting user.
	User string `json:"user"`

	// Operation is the requested access operation.
	Operation string `json:"operation"`

	// Module is the module being accessed, if any.
	Module string `json:"module,omitempty"`

	// RPC is the RPC being invoked, if any.
	RPC string `json:"rpc,omitempty"`

	// Path is the data path being accessed, if any.
	Path string `json:"path,omitempty"`

	// Context is the management-interface context, if known.
	Context string `json:"context,omitempty"`

	// Command is the command line, for command requests.
	Command string `json:"command,omitempty"`

	// Effect is the decision outcome.
	Effect string `json:"effect"`

	// Rule is the name of the deciding rule, empty for default decisions.
	Rule string `json:"rule,omitempty"`

	// Default reports that a default policy decided the request.
	Default bool `json:"default,omitempty"`
}

// NewEvent builds an audit event from a decision record, stamping it with
// a fresh ID and the current time.
func NewEvent(record *nacm.DecisionRecord) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		User:      record.Request.User,
		Operation: string(record.Request.Operation),
		Module:    record.Request.ModuleName,
		RPC:       record.Request.RPCName,
		Path:      record.Request.Path,
		Context:   record.Request.Context,
		Command:   record.Request.Command,
		Effect:    string(record.Result.Effect),
		Rule:      record.MatchedRule,
		Default:   record.DefaultApplied,
	}
}
