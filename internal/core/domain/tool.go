package domain

// ToolKind enumerates the tools an agent may invoke. The set is closed.
type ToolKind string

// Available tools.
const (
	ToolQueryKnowledgeBase ToolKind = "query_knowledge_base"
	ToolRecallMemory       ToolKind = "recall_memory"
	ToolCreatePlot         ToolKind = "create_plot"
	ToolCreateConceptMap   ToolKind = "create_concept_map"
)

// AllToolKinds returns every tool kind.
func AllToolKinds() []ToolKind {
	return []ToolKind{ToolQueryKnowledgeBase, ToolRecallMemory, ToolCreatePlot, ToolCreateConceptMap}
}

// ParseToolKind maps a tool name from a model response onto a kind.
func ParseToolKind(name string) (ToolKind, bool) {
	k := ToolKind(name)
	switch k {
	case ToolQueryKnowledgeBase, ToolRecallMemory, ToolCreatePlot, ToolCreateConceptMap:
		return k, true
	default:
		return "", false
	}
}

// String returns the string representation.
func (k ToolKind) String() string {
	return string(k)
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID   string
	Name string

	// Arguments is the raw JSON argument object.
	Arguments string
}

// ToolResult is the text returned to the model for one tool call.
type ToolResult struct {
	CallID  string
	Kind    ToolKind
	Content string
	IsError bool
}

// ToolUsage counts dispatched tool calls.
type ToolUsage struct {
	Total     int
	Succeeded int
	Failed    int
	ByKind    map[ToolKind]int
}
