// Package workflows holds named prompt templates for repair and
// diagnostic scenarios. Templates give load tests and demo scripts
// reproducible tasks instead of freehand prompts.
package workflows

import (
	"fmt"
	"sort"
)

const (
	healthCheck = `Check the overall system health and report the status of all services.`

	minimalSingleTool = `Your task: Call system_health ONCE, then immediately provide your Final Answer with the results.

STOP after 1 tool call. Do NOT call any other tools. DO NOT verify or check again.`

	forcedFullRepair = `Perform a complete repair workflow test:
1. Call system_health to check the system
2. Call service_restart to restart the api-gateway service (regardless of status)
3. Call system_health again to verify the system

Execute all 3 steps in order to demonstrate the full workflow.`

	repairDeterministic = `Check system health. If the api-gateway service is degraded or has errors, read its logs
to diagnose the issue, then restart it. Finally, verify that the system is healthy.

If all services are healthy and logs show no errors, respond with "System is healthy, no action needed."`

	repairOpenEnded = `Check the system and identify any issues. Diagnose the root cause by examining logs
and diagnostics. Take appropriate corrective actions to restore the system to a healthy state.`

	diagnosticsWorkflow = `Run comprehensive diagnostics on the api-gateway service. Check its health,
read recent logs, and verify database connectivity. Report any issues found.`

	databaseCheck = `Check the database status and report on connection pool utilization,
query performance, and any slow queries detected.`

	configUpdate = `Update the api-gateway service configuration: set max_connections to 200.
Note that a restart will be required for this change to take effect.`

	multiStepRepair = `1. First check overall system health
2. If any service is degraded, read its logs to understand why
3. Run diagnostics on the problematic service
4. If the issue is related to database, check database status
5. Take corrective action (restart service or update config)
6. Verify the fix worked`

	progressiveDiagnosis = `Diagnose system issues by progressively narrowing down the problem:
1. Check system health to identify failing services
2. For each failing service, read logs to find error patterns
3. Run diagnostics to get detailed health check results
4. Check database if any services report database errors
5. Summarize findings and recommend actions`

	explainCapabilities = `Explain what system operations you can perform and what tools you have available.`

	statusQuery = `What is the current status of the system? Are all services running properly?`

	serviceInfo = `Tell me about the api-gateway service. Is it running? Are there any recent errors?`

	invalidService = `Check the health of the "nonexistent-service" and restart it if needed.`

	multipleRestarts = `Restart all services in this order: api-gateway, auth-service, database, cache-service.
Wait 5 seconds between each restart.`
)

// Workflow pairs a template with its one-line description.
type Workflow struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Prompt      string `json:"prompt"`
}

var templates = map[string]Workflow{
	"health_check":          {Description: "Check overall system health", Prompt: healthCheck},
	"minimal_single_tool":   {Description: "Single tool call then immediate answer", Prompt: minimalSingleTool},
	"forced_full_repair":    {Description: "Three-step check, restart, verify sequence", Prompt: forcedFullRepair},
	"repair_deterministic":  {Description: "Deterministic repair workflow (for load testing)", Prompt: repairDeterministic},
	"repair_open_ended":     {Description: "Open-ended repair workflow (agent decides actions)", Prompt: repairOpenEnded},
	"diagnostics":           {Description: "Run diagnostics on a service", Prompt: diagnosticsWorkflow},
	"database_check":        {Description: "Check database status", Prompt: databaseCheck},
	"config_update":         {Description: "Update service configuration", Prompt: configUpdate},
	"multi_step_repair":     {Description: "Multi-step repair with progressive diagnosis", Prompt: multiStepRepair},
	"progressive_diagnosis": {Description: "Progressive diagnosis workflow", Prompt: progressiveDiagnosis},
	"explain_capabilities":  {Description: "Ask agent to explain its capabilities", Prompt: explainCapabilities},
	"status_query":          {Description: "Query system status", Prompt: statusQuery},
	"service_info":          {Description: "Query specific service information", Prompt: serviceInfo},
	"invalid_service":       {Description: "Test with invalid service name", Prompt: invalidService},
	"multiple_restarts":     {Description: "Restart multiple services sequentially", Prompt: multipleRestarts},
}

// Prompt returns the template text for a named workflow.
func Prompt(name string) (string, error) {
	w, ok := templates[name]
	if !ok {
		return "", fmt.Errorf("unknown workflow %q", name)
	}
	return w.Prompt, nil
}

// ResolveTask maps a repair request onto a task prompt. Resolution
// order: an explicit workflow name, then deterministic mode, then the
// open-ended repair template.
func ResolveTask(workflow string, deterministic bool) (string, error) {
	if workflow != "" {
		return Prompt(workflow)
	}
	if deterministic {
		return repairDeterministic, nil
	}
	return repairOpenEnded, nil
}

// List returns all workflows sorted by name, with prompts included.
func List() []Workflow {
	out := make([]Workflow, 0, len(templates))
	for name, w := range templates {
		w.Name = name
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
