package transport

import (
	"regexp"

	"github.com/coderloop/coderloop/pkg/validate"
)

var sessionIDPattern = regexp.MustCompile(`^session-[a-z0-9-]+$`)
var artifactIDPattern = regexp.MustCompile(`^artifact-[a-z0-9-]+$`)

var reviewDepthEnum = []string{"quick", "standard", "comprehensive"}

// schemaFor returns the declarative Schema (spec §4.7 Validator) for
// each of the twelve tools (spec §6), keyed by tool name.
func schemaFor(tool string) validate.Schema {
	switch tool {
	case "execute_task_spec":
		return validate.Schema{Tool: tool, Fields: []validate.Field{
			{Name: "description", Type: validate.TypeString, Required: true, MinLength: intp(10), MaxLength: intp(10000)},
			{Name: "language", Type: validate.TypeString, Required: true, MinLength: intp(1)},
			{Name: "max_iterations", Type: validate.TypeInt, Min: floatp(1), Max: floatp(100)},
			{Name: "quality_threshold", Type: validate.TypeInt, Min: floatp(0), Max: floatp(100)},
		}}
	case "run_critic_review":
		return validate.Schema{Tool: tool, Fields: []validate.Field{
			{Name: "session_id", Type: validate.TypeString, Required: true, Pattern: sessionIDPattern},
			{Name: "artifact_id", Type: validate.TypeString, Required: true, Pattern: artifactIDPattern},
			{Name: "review_depth", Type: validate.TypeString, Enum: reviewDepthEnum},
		}}
	case "revise_code":
		return validate.Schema{Tool: tool, Fields: []validate.Field{
			{Name: "session_id", Type: validate.TypeString, Required: true, Pattern: sessionIDPattern},
			{Name: "feedback", Type: validate.TypeString, Required: true, MinLength: intp(1)},
		}}
	case "get_repo_map":
		return validate.Schema{Tool: tool, Fields: []validate.Field{
			{Name: "repo_path", Type: validate.TypeString, Required: true, Custom: func(v any) error {
				return validate.SanitizePath(v.(string))
			}},
			{Name: "include_tests", Type: validate.TypeBool},
		}}
	case "get_project_status":
		return validate.Schema{Tool: tool, Fields: []validate.Field{
			{Name: "session_id", Type: validate.TypeString, Required: true, Pattern: sessionIDPattern},
		}}
	case "get_progress_summary":
		return validate.Schema{Tool: tool, Fields: []validate.Field{
			{Name: "session_id", Type: validate.TypeString, Required: true, Pattern: sessionIDPattern},
			{Name: "verbosity", Type: validate.TypeString, Enum: []string{"summary", "detailed"}},
		}}
	case "final_handoff_archive":
		return validate.Schema{Tool: tool, Fields: []validate.Field{
			{Name: "session_id", Type: validate.TypeString, Required: true, Pattern: sessionIDPattern},
			{Name: "include_audit", Type: validate.TypeBool},
		}}
	case "read_org_policies":
		return validate.Schema{Tool: tool, Fields: []validate.Field{
			{Name: "policy_type", Type: validate.TypeString, Required: true, Enum: []string{"style", "security", "custom"}},
		}}
	case "configure_endpoint":
		return validate.Schema{Tool: tool, Fields: []validate.Field{
			{Name: "agent_type", Type: validate.TypeString, Required: true, Enum: []string{"coder", "critic"}},
			{Name: "provider_config", Type: validate.TypeObject, Required: true},
		}}
	case "set_system_prompts":
		return validate.Schema{Tool: tool, Fields: []validate.Field{
			{Name: "agent_type", Type: validate.TypeString, Required: true, Enum: []string{"coder", "critic"}},
			{Name: "prompts", Type: validate.TypeObject, Required: true},
		}}
	case "generate_test_suite":
		return validate.Schema{Tool: tool, Fields: []validate.Field{
			{Name: "artifact_id", Type: validate.TypeString, Required: true, Pattern: artifactIDPattern},
			{Name: "framework", Type: validate.TypeString, Required: true, MinLength: intp(1)},
			{Name: "coverage_target", Type: validate.TypeFloat, Min: floatp(0), Max: floatp(100)},
		}}
	case "inject_alternative_pattern":
		return validate.Schema{Tool: tool, Fields: []validate.Field{
			{Name: "pattern", Type: validate.TypeString, Required: true, MinLength: intp(1)},
			{Name: "context", Type: validate.TypeString, Required: true, MinLength: intp(1)},
		}}
	default:
		return validate.Schema{Tool: tool}
	}
}

func intp(v int) *int          { return &v }
func floatp(v float64) *float64 { return &v }
