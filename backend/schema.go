package backend

import "github.com/mempirate/electionjobs/job"

// Strict mode requires every property to be listed as required; optional
// values are expressed as nullable types.
var extractionSchema interface{} = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"job_title":       map[string]interface{}{"type": "string"},
		"employer":        map[string]interface{}{"type": "string"},
		"state":           map[string]interface{}{"type": "string"},
		"salary_low_end":  map[string]interface{}{"type": []string{"number", "null"}},
		"salary_high_end": map[string]interface{}{"type": []string{"number", "null"}},
		"pay_basis": map[string]interface{}{
			"type": "string",
			"enum": []string{
				string(job.PayHourly),
				string(job.PayBiweekly),
				string(job.PaySemiMonthly),
				string(job.PayMonthly),
				string(job.PayYearly),
				string(job.PayUnknown),
			},
		},
	},
	"required":             []string{"job_title", "employer", "state", "salary_low_end", "salary_high_end", "pay_basis"},
	"additionalProperties": false,
}

var classificationSchema interface{} = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"classification": map[string]interface{}{
			"type": "string",
			"enum": []string{
				string(job.RoleNonChief),
				string(job.RoleChief),
				string(job.RoleNonElection),
			},
		},
	},
	"required":             []string{"classification"},
	"additionalProperties": false,
}
