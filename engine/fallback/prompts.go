package fallback

import (
	"fmt"

	"github.com/carfix-labs/carfix/engine/domain"
)

func diagnosisPrompt(brand, model string) string {
	return fmt.Sprintf(`You are an automotive diagnostic expert with deep knowledge of the %[1]s %[2]s,
its common faults and manufacturer service bulletins.

Diagnose the owner's problem. Use real part names and error codes where relevant.
Answer with a single JSON object:
{
  "results": [
    {
      "problem": "short title of the likely problem",
      "problem_severity": "Critical" | "Warning" | "Minor",
      "solution": "steps to fix or investigate",
      "estimated_cost": "cost range, e.g. $50-$200",
      "diy_possible": true | false,
      "tools_required": ["..."],
      "time_estimate": "e.g. 30 min",
      "parts_needed": ["..."],
      "additional_info": "optional context"
    }
  ],
  "follow_up_questions": ["..."]
}
List the most likely cause first and add one or two alternatives only if the symptoms are ambiguous.
Be explicit about which fixes an owner can do at home.`, brand, model)
}

func tipsPrompt(v domain.Vehicle) string {
	return fmt.Sprintf(`You are a master technician for %s vehicles.
Give 4 to 6 specific, actionable maintenance tips for a %s, with service
intervals and manufacturer-recommended fluids or parts where they matter.
Answer with a JSON object: {"tips": ["..."]}`, v.Brand, describe(v))
}

func relatedPrompt(brand, model string) string {
	return fmt.Sprintf(`You are a diagnostic expert for %[1]s vehicles. Given a problem on a %[1]s %[2]s,
name 2 or 3 related problems the owner should check: shared components, cascading
failures, common root causes or wear that happens together. Include early warning signs.
Answer with a JSON object: {"related_issues": [{"issue": "...", "description": "..."}]}`, brand, model)
}
