package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"labtriage/internal/queue"
)

const instructions = `INSTRUCTIONS:
1. Compare the data (and the change from history, if any) against the thresholds in the HOSPITAL POLICY only.
2. Assign risk_level as exactly one of "Routine", "Urgent", "Critical".
3. Assign the matching policy tier label from the policy (for example "Level 4").
4. Copy the single policy line that justifies the tier into policy_citation, verbatim.
5. Add a one or two sentence plain-language explanation a patient could follow.

Return ONLY a JSON object with this structure:
{
  "findings": ["finding 1", "finding 2"],
  "risk_level": "Routine | Urgent | Critical",
  "policy_level": "Level X",
  "summary": "clinical summary",
  "policy_citation": "exact line from the policy",
  "analogy": "plain-language explanation"
}`

// BuildPrompt combines one work item with the policy text.
func BuildPrompt(item *queue.Item, policyText string) string {
	var b strings.Builder
	b.WriteString("Analyze this investigation result strictly against the HOSPITAL POLICY below. ")
	b.WriteString("Every judgment must be grounded in, and cite, specific policy text.\n\n")
	b.WriteString("HOSPITAL POLICY:\n\"\"\"\n")
	b.WriteString(strings.TrimSpace(policyText))
	b.WriteString("\n\"\"\"\n\n")
	fmt.Fprintf(&b, "PATIENT: %s (%d years old)\n", item.PatientName, item.PatientAge)
	fmt.Fprintf(&b, "TEST: %s\n", item.TestName)
	fmt.Fprintf(&b, "DATA: %s\n", payloadJSON(item.Measurements, "No data recorded"))
	fmt.Fprintf(&b, "HISTORY: %s\n\n", payloadJSON(item.History, "No prior history"))
	b.WriteString(instructions)
	return b.String()
}

func payloadJSON(p queue.Payload, empty string) string {
	if p.IsZero() {
		data, _ := json.Marshal(empty)
		return string(data)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return p.String()
	}
	return string(data)
}
