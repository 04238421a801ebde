package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations should return a sensible default
	// or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names used throughout the application.
// These constants define the contract between prompt consumers and providers.
const (
	// PromptInsightExtraction turns a round's dialogue into discrete insights.
	// Placeholders: %d (min), %d (max), %s (round text).
	PromptInsightExtraction = "insight_extraction"

	// PromptContributionPlan asks an agent for its plan for a round.
	// Placeholders: %d (round), %s (agenda), %s (questions), %s (previous insights).
	PromptContributionPlan = "contribution_plan"

	// PromptFigureAnalysis describes a figure. The caption, when known,
	// is appended by the caller.
	PromptFigureAnalysis = "figure_analysis"

	// PromptPlotData extracts data series from a chart. No placeholders.
	PromptPlotData = "plot_data"

	// PromptPanelDetection finds sub-panels in a figure.
	// Placeholders: %d (width), %d (height). The caption is appended by the caller.
	PromptPanelDetection = "panel_detection"

	// PromptEquationDetection finds equation regions on a rendered page.
	// Placeholders: %d (width), %d (height).
	PromptEquationDetection = "equation_detection"

	// PromptEquationOCR transcribes one cropped equation to LaTeX. No placeholders.
	PromptEquationOCR = "equation_ocr"

	// PromptAgentSystem frames an expert persona during a turn.
	// Placeholders: %s (agent), %s (expertise), %s (domain).
	PromptAgentSystem = "agent_system"
)

// PromptStoreAware is an optional interface for services that can use custom prompts.
type PromptStoreAware interface {
	// SetPromptStore sets the prompt store for loading customisable prompts.
	// If not set, the service should use hardcoded default prompts.
	SetPromptStore(store PromptStore)
}
