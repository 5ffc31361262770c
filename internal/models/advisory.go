package models

// DefaultAdvisoryClient is used when an advisory question names no client.
const DefaultAdvisoryClient = "Company"

// QueryRequest is the body of the advisory endpoints
type QueryRequest struct {
	Question string `json:"question" binding:"required"`
	ClientID string `json:"client_id"`
}

// PolicyAnswer is the reply of the policy auditor
type PolicyAnswer struct {
	Answer string `json:"answer"`
}

// ClaimEvaluation is the reply of the claim cross-check
type ClaimEvaluation struct {
	ClientID   string `json:"client_id"`
	Evaluation string `json:"evaluation"`
}
