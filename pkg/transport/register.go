package transport

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// registerTools binds all twelve tools (spec §6) onto the MCP server,
// each wrapped by dispatch so every call runs the common
// auth/rate-limit/validate/metrics pipeline before reaching its
// handler.
func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("execute_task_spec",
		mcp.WithDescription("Start a new code-generation orchestration and return its session id and status."),
		mcp.WithString("description", mcp.Required(), mcp.Description("Natural-language task description, 10-10000 characters.")),
		mcp.WithString("language", mcp.Required(), mcp.Description("Target programming language.")),
		mcp.WithNumber("max_iterations", mcp.Description("Override the default iteration cap.")),
		mcp.WithNumber("quality_threshold", mcp.Description("Override the default approval quality threshold.")),
	), s.dispatch("execute_task_spec", s.handleExecuteTaskSpec))

	s.mcp.AddTool(mcp.NewTool("run_critic_review",
		mcp.WithDescription("Run the review pipeline against a code artifact and return its verdict."),
		mcp.WithString("session_id", mcp.Required()),
		mcp.WithString("artifact_id", mcp.Required()),
		mcp.WithString("review_depth", mcp.Enum("quick", "standard", "comprehensive")),
	), s.dispatch("run_critic_review", s.handleRunCriticReview))

	s.mcp.AddTool(mcp.NewTool("revise_code",
		mcp.WithDescription("Invoke the Coder's revise facet with feedback and append the resulting code artifact."),
		mcp.WithString("session_id", mcp.Required()),
		mcp.WithString("feedback", mcp.Required()),
	), s.dispatch("revise_code", s.handleReviseCode))

	s.mcp.AddTool(mcp.NewTool("get_repo_map",
		mcp.WithDescription("Return a hierarchical map of a repository's files with estimated token counts."),
		mcp.WithString("repo_path", mcp.Required()),
		mcp.WithBoolean("include_tests"),
	), s.dispatch("get_repo_map", s.handleGetRepoMap))

	s.mcp.AddTool(mcp.NewTool("get_project_status",
		mcp.WithDescription("Return a session's current snapshot."),
		mcp.WithString("session_id", mcp.Required()),
	), s.dispatch("get_project_status", s.handleGetProjectStatus))

	s.mcp.AddTool(mcp.NewTool("get_progress_summary",
		mcp.WithDescription("Return iteration counts, score history, and convergence trend for a session."),
		mcp.WithString("session_id", mcp.Required()),
		mcp.WithString("verbosity", mcp.Enum("summary", "detailed")),
	), s.dispatch("get_progress_summary", s.handleGetProgressSummary))

	s.mcp.AddTool(mcp.NewTool("final_handoff_archive",
		mcp.WithDescription("Produce the final handoff archive for a converged session."),
		mcp.WithString("session_id", mcp.Required()),
		mcp.WithBoolean("include_audit"),
	), s.dispatch("final_handoff_archive", s.handleFinalHandoffArchive))

	s.mcp.AddTool(mcp.NewTool("read_org_policies",
		mcp.WithDescription("Return the resolved rule set for a policy type."),
		mcp.WithString("policy_type", mcp.Required(), mcp.Enum("style", "security", "custom")),
	), s.dispatch("read_org_policies", s.handleReadOrgPolicies))

	s.mcp.AddTool(mcp.NewTool("configure_endpoint",
		mcp.WithDescription("Swap the Coder or Critic's provider connection and run a health check."),
		mcp.WithString("agent_type", mcp.Required(), mcp.Enum("coder", "critic")),
		mcp.WithObject("provider_config", mcp.Required()),
	), s.dispatch("configure_endpoint", s.handleConfigureEndpoint))

	s.mcp.AddTool(mcp.NewTool("set_system_prompts",
		mcp.WithDescription("Update the prompt templates for the Coder or Critic."),
		mcp.WithString("agent_type", mcp.Required(), mcp.Enum("coder", "critic")),
		mcp.WithObject("prompts", mcp.Required()),
	), s.dispatch("set_system_prompts", s.handleSetSystemPrompts))

	s.mcp.AddTool(mcp.NewTool("generate_test_suite",
		mcp.WithDescription("Generate a test-suite artifact targeting the given framework and coverage."),
		mcp.WithString("artifact_id", mcp.Required()),
		mcp.WithString("framework", mcp.Required()),
		mcp.WithNumber("coverage_target"),
	), s.dispatch("generate_test_suite", s.handleGenerateTestSuite))

	s.mcp.AddTool(mcp.NewTool("inject_alternative_pattern",
		mcp.WithDescription("Record a pattern hint to influence subsequent revisions."),
		mcp.WithString("pattern", mcp.Required()),
		mcp.WithString("context", mcp.Required()),
	), s.dispatch("inject_alternative_pattern", s.handleInjectAlternativePattern))
}
