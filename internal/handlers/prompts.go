package handlers

import "github.com/isuzu-shiranui/UnityMCP/internal/bridge"

// WorkflowPrompts exposes the built-in prompt templates for common Unity
// workflows. Templates are rendered bridge-side; no editor round trip.
type WorkflowPrompts struct{}

// NewWorkflowPrompts constructs the built-in prompt handler.
func NewWorkflowPrompts() *WorkflowPrompts { return &WorkflowPrompts{} }

// PromptName identifies this prompt handler.
func (WorkflowPrompts) PromptName() string { return "unity-workflows" }

// Description describes the handler for listings.
func (WorkflowPrompts) Description() string {
	return "Guided prompts for common Unity editor workflows"
}

// PromptDefinitions lists the prompt templates this handler contributes.
func (WorkflowPrompts) PromptDefinitions() map[string]bridge.PromptDefinition {
	return map[string]bridge.PromptDefinition{
		"unity_fix_compile_errors": {
			Description: "Walk through fixing the current compile errors in the project",
			Template: "Fetch the current Unity console errors with console_getLogs (logType \"error\"), " +
				"then fix each compile error in {scriptFolder} one file at a time. " +
				"After each fix, clear the console and check whether errors remain.",
			Arguments: map[string]bridge.PromptArgument{
				"scriptFolder": {Description: "Folder containing the scripts to fix", Required: true},
			},
		},
		"unity_run_test_cycle": {
			Description: "Run the project's tests and iterate until they pass",
			Template: "Run the {testMode} tests with tests_run. For every failure, inspect the message, " +
				"apply a fix, and re-run the same tests. Stop when the run is green and summarize the changes.",
			Arguments: map[string]bridge.PromptArgument{
				"testMode": {Description: "EditMode or PlayMode", Required: true},
			},
		},
		"unity_save_and_verify": {
			Description: "Save the open project and verify the console is clean",
			Template: "Execute the menu item \"File/Save Project\" with menu_execute, then fetch the " +
				"console logs and report any warnings or errors that appeared.",
		},
	}
}
