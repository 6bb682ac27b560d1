package compose

import (
	"encoding/json"
	"fmt"

	"github.com/pagewright/pagewright/internal/render"
)

// parsePlan decodes the planner's response into a layout plan. The whole
// response is tried first; when the model wrapped the object in prose, the
// first balanced JSON object is extracted and decoded instead.
func parsePlan(response string) (render.Plan, error) {
	var plan render.Plan
	if err := json.Unmarshal([]byte(response), &plan); err == nil {
		return plan, nil
	}

	jsonStr := ""
	start := -1
	depth := 0
	for i, ch := range response {
		if ch == '{' {
			if depth == 0 {
				start = i
			}
			depth++
		} else if ch == '}' {
			if depth > 0 {
				depth--
			}
			if depth == 0 && start != -1 {
				jsonStr = response[start : i+1]
				break
			}
		}
	}
	if jsonStr == "" {
		return render.Plan{}, fmt.Errorf("no JSON object in planner response")
	}
	if err := json.Unmarshal([]byte(jsonStr), &plan); err != nil {
		return render.Plan{}, fmt.Errorf("failed to parse planner response: %w", err)
	}
	return plan, nil
}
