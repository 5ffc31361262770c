// Package pipeline runs one claim evaluation through a fixed, ordered list of
// stages that share a single State value.
package pipeline

import "fmt"

// Message roles in the conversation trace.
const (
	RoleSystem = "system"
	RoleHuman  = "human"
)

// Message is one entry of the conversation trace
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// State is threaded through every stage of one instance. Each field other
// than RiskScore is owned by exactly one stage; stage order guarantees that a
// field is produced before it is read.
type State struct {
	InstanceID     string
	ClientID       string
	SubmissionDate string
	Messages       []Message

	PolicyCategory   string // selector
	PolicyContext    string // selector
	HistoryContext   string // investigator
	RiskScore        int    // additive
	ComplianceReport string // compliance
	FinalVerdict     string // orchestrator
}

// NewState seeds the state for an instance. The first human message is the
// caller's question, or a generated evaluation request when none was given.
func NewState(instanceID, clientID, submissionDate string, question *string) *State {
	content := fmt.Sprintf("Evaluate claim for client %s submitted on %s.", clientID, submissionDate)
	if question != nil && *question != "" {
		content = *question
	}

	return &State{
		InstanceID:     instanceID,
		ClientID:       clientID,
		SubmissionDate: submissionDate,
		Messages:       []Message{{Role: RoleHuman, Content: content}},
	}
}

// Query returns the content of the first message in the trace.
func (s *State) Query() string {
	if len(s.Messages) == 0 {
		return ""
	}
	return s.Messages[0].Content
}

// AddSystemMessage appends a system message to the trace.
func (s *State) AddSystemMessage(content string) {
	s.Messages = append(s.Messages, Message{Role: RoleSystem, Content: content})
}

// AddRisk increases the risk score. Non-positive increments are ignored so
// the score never decreases.
func (s *State) AddRisk(delta int) {
	if delta > 0 {
		s.RiskScore += delta
	}
}
