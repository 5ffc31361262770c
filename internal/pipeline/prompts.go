package pipeline

import "fmt"

// Retrieval sizes and risk increments.
const (
	PolicyTopK  = 3
	HistoryTopK = 5

	SuspiciousRisk = 25
	ViolationRisk  = 40

	DefaultCategory = "General"
	NoHistory       = "No history."
)

func historyPrompt(clientID, history string) string {
	return fmt.Sprintf("Analyze claim history for %s:\n%s", clientID, history)
}

func compliancePrompt(rules, claimContext string) string {
	return fmt.Sprintf("Apply Rules:\n%s\n\nClaim Context: %s", rules, claimContext)
}

func verdictPrompt(risk int, report string) string {
	return fmt.Sprintf("Provide final APPROVED/DENIED verdict based on:\nRisk: %d\nCompliance: %s", risk, report)
}

func archiveContent(verdict, report string) string {
	return fmt.Sprintf("Verdict: %s\nReport: %s", verdict, report)
}
