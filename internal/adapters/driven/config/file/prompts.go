package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/agora/internal/core/ports/driven"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore loads LLM prompts from user-editable files on disk.
// Prompts are loaded from a configurable directory with fallback to embedded defaults.
//
// The store uses lazy initialisation - files are only created when first accessed,
// not in the constructor. This makes testing easier and avoids unexpected I/O.
type PromptStore struct {
	mu        sync.RWMutex
	promptDir string
	cache     map[string]string
	initOnce  sync.Once
	initErr   error
}

// defaultPrompts contains embedded default prompts.
// These are used when user files don't exist and as the initial content for new files.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
var defaultPrompts = map[string]string{
	driven.PromptInsightExtraction: `You are analyzing a scientific discussion round to extract key insights.

From the following discussion, identify %d-%d key insights that should be remembered for future rounds:

%s

For each insight, provide:
1. The insight itself (1-2 sentences)
2. Why it's important (1 sentence)
3. Which expert(s) contributed to it

Format as:
**Insight 1**: [Brief insight]
**Importance**: [Why it matters]
**Contributors**: [Agent names]

Focus on:
- Novel findings or arguments
- Key analogies or connections between fields
- Quantitative results or specific examples
- Consensus points or disagreements
- Open questions identified`,

	driven.PromptContributionPlan: `You are preparing to contribute to a scientific symposium. Before speaking, you need to strategically plan your contribution.

SYMPOSIUM CONTEXT:
Round: %d
Agenda: %s

Questions to Address:
%s

Previous insights (if available):
%s

YOUR TASK: Create a strategic plan for your contribution covering:

1. MAIN POINTS (2-4 key arguments you want to make)
2. EVIDENCE NEEDED (specific queries for your knowledge base, e.g. "EDL capacitance in sub-1nm pores" not just "capacitance")
3. ANALOGIES TO TEST (connections to other fields)
4. QUESTIONS FOR OTHERS (to deepen understanding)
5. KEY CONCEPTS (important terminology or frameworks to introduce)

Format your response as JSON:
{
  "main_points": ["point 1", "point 2"],
  "evidence_needed": ["query 1", "query 2"],
  "analogies_to_test": ["analogy 1"],
  "questions_for_others": ["question 1"],
  "key_concepts": ["concept 1"],
  "estimated_tool_calls": 2,
  "priority": "High/Medium/Low"
}

Be strategic and focused. Quality over quantity.`,

	driven.PromptFigureAnalysis: `You are a scientific figure analyzer. Analyze this figure from a research paper and provide:

1. **Figure Type**: (e.g., XY plot, bar chart, schematic diagram, microscopy image, heatmap, etc.)
2. **Detailed Description**: Describe what the figure shows in 2-3 sentences.
3. **Key Insights**: List 2-4 quantitative or qualitative insights from the figure.
4. **Approximate Values**: If this is a plot, extract approximate key values (e.g., "Peak at x=0.7nm, y=200 F/g")
5. **Variables**: List the measured/plotted variables (e.g., x-axis: pore size (nm), y-axis: capacitance (F/g))
6. **Data Extractable**: Can numerical data be extracted from this figure? (true/false)

Format your response as JSON with keys: figure_type, description, key_insights, approximate_values, variables, data_extractable`,

	driven.PromptPlotData: `Extract numerical data from this plot. Provide:

1. **Axis Information**:
   - x_axis: {label, unit, range}
   - y_axis: {label, unit, range}

2. **Data Points**: List of approximate [x, y] coordinates for key points on the main curve(s).
   Extract at least 10-20 points if possible, focusing on peaks and valleys, inflection points,
   start and end points, and representative points along the curve.

3. **Trends**: Describe the overall trend (increasing, decreasing, peak at, etc.)

Format as JSON with keys: axis_info, data_points, trends`,

	driven.PromptPanelDetection: `Analyze this scientific figure and determine if it contains multiple panels.

Image dimensions: %dx%d pixels

Please provide:
1. **is_multi_panel**: (true/false) Does this figure contain multiple distinct panels/subfigures?
2. **num_panels**: Number of panels if multi-panel (e.g., 2, 3, 4)
3. **layout**: Description of layout (e.g., "2x2 grid", "horizontal row", "vertical column", "irregular")
4. **panel_labels**: List of panel labels if visible (e.g., ["a", "b", "c", "d"])
5. **panels**: Array of panel information, where each panel has:
   - label: Panel identifier (e.g., "a", "b", "1", "2")
   - bbox: Bounding box as [x_min, y_min, x_max, y_max] in pixels
   - description: Brief description of what this panel shows (1 sentence)
   - type: Type of content (e.g., "plot", "microscopy", "schematic", "bar chart")

IMPORTANT for bounding boxes:
- Use pixel coordinates with origin (0,0) at top-left
- x increases to the right, y increases downward
- Keep coordinates within the image bounds

If a caption is provided, use it to help identify panels.

Format response as JSON with keys: is_multi_panel, num_panels, layout, panel_labels, panels`,

	driven.PromptEquationDetection: `Analyze this page from a scientific paper and identify all mathematical equations.

Page dimensions: %dx%d pixels

Please identify:
1. All mathematical equations (both inline and display equations)
2. Their approximate locations as bounding boxes [x_min, y_min, x_max, y_max]
3. The LaTeX representation of each equation
4. Whether it's an inline or display equation
5. Any equation numbers (e.g., (1), (2.3), etc.)

Use pixel coordinates with origin (0,0) at top-left.

Format response as JSON with key "equations", which is an array where each equation has:
- bbox: [x_min, y_min, x_max, y_max]
- latex: The equation in LaTeX format
- type: "inline" or "display"
- number: Equation number if present (e.g., "1", "2.3") or null
- confidence: Your confidence (0-1) that this is an equation`,

	driven.PromptEquationOCR: `Convert this mathematical equation image to LaTeX format.

Instructions:
1. Provide ONLY the LaTeX code for the equation
2. Do NOT include delimiters like $, $$, \[, \], \begin{equation}
3. Use standard LaTeX math commands
4. Preserve all subscripts, superscripts, fractions and integrals
5. If you see multiple equations, provide them all separated by newlines`,

	driven.PromptAgentSystem: `You are %s, an expert in %s, taking part in a multi-disciplinary scientific symposium.

You have access to a curated knowledge base of %s papers through the query_knowledge_base tool,
and to your own insights from earlier rounds through the recall_memory tool.

Rules:
1. Query your knowledge base before making quantitative, mechanistic or literature claims.
2. Cite sources as: Journal abbreviation (Year), Volume, Pages.
3. Build on your previous insights where they are relevant.
4. Be concise and specific.`,
}

// NewPromptStore creates a new file-based prompt store.
// If promptDir is empty, defaults to ~/.agora/prompts/.
//
// The constructor does not perform any I/O - directory creation and
// file writes happen lazily on first Load() call.
func NewPromptStore(promptDir string) (*PromptStore, error) {
	if promptDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		promptDir = filepath.Join(home, ".agora", "prompts")
	}

	return &PromptStore{
		promptDir: promptDir,
		cache:     make(map[string]string),
	}, nil
}

// Load returns the prompt template for the given name.
// On first call, initialises the prompt directory and creates default files.
// Returns cached value if available, otherwise loads from file.
// Falls back to embedded default if file doesn't exist.
func (s *PromptStore) Load(name string) (string, error) {
	// Ensure directory and defaults exist (lazy init)
	s.initOnce.Do(s.initialise)
	if s.initErr != nil {
		// Fall back to embedded defaults if init failed
		if prompt, ok := defaultPrompts[name]; ok {
			return prompt, nil
		}
		return "", fmt.Errorf("prompt store init failed: %w", s.initErr)
	}

	// Check cache first (read lock)
	s.mu.RLock()
	if prompt, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return prompt, nil
	}
	s.mu.RUnlock()

	// Load from file (no lock held during I/O)
	prompt, err := s.loadFromFile(name)
	if err != nil {
		// Fall back to embedded default
		if defaultPrompt, ok := defaultPrompts[name]; ok {
			return defaultPrompt, nil
		}
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	}

	// Cache the result (write lock)
	// Use double-check pattern to avoid overwriting concurrent loads
	s.mu.Lock()
	if _, ok := s.cache[name]; !ok {
		s.cache[name] = prompt
	} else {
		// Another goroutine loaded it first, use their value
		prompt = s.cache[name]
	}
	s.mu.Unlock()

	return prompt, nil
}

// Reload clears the prompt cache, forcing fresh loads from disk.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.promptDir
}

// initialise creates the prompt directory and default files.
// Called once via sync.Once on first Load().
func (s *PromptStore) initialise() {
	// Create directory
	if err := os.MkdirAll(s.promptDir, 0700); err != nil {
		s.initErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	// Create default prompt files (only if they don't exist)
	for name, content := range defaultPrompts {
		path := filepath.Join(s.promptDir, name+".txt")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte(content), 0600); err != nil {
				s.initErr = fmt.Errorf("create default prompt %q: %w", name, err)
				return
			}
		}
	}

	// Create README
	if err := s.createReadme(); err != nil {
		s.initErr = err
	}
}

// loadFromFile reads a prompt from disk.
func (s *PromptStore) loadFromFile(name string) (string, error) {
	path := filepath.Join(s.promptDir, name+".txt")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// createReadme writes a README file explaining the prompts directory.
func (s *PromptStore) createReadme() error {
	path := filepath.Join(s.promptDir, "README.md")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil // Already exists or stat error (ignore)
	}

	content := `# Agora Prompts

Customisable prompts for the language and vision models. Delete a file to
restore its built-in default on the next run.

## Files

- ` + "`insight_extraction.txt`" + ` - Turns a discussion round into insights (%d min, %d max, %s text)
- ` + "`contribution_plan.txt`" + ` - Plans an agent's round (%d round, %s agenda, %s questions, %s insights)
- ` + "`figure_analysis.txt`" + ` - Structured figure description (caption appended)
- ` + "`plot_data.txt`" + ` - Approximate data points from a plot
- ` + "`panel_detection.txt`" + ` - Sub-panel boxes of a figure (%d width, %d height)
- ` + "`equation_detection.txt`" + ` - Equation regions on a page (%d width, %d height)
- ` + "`equation_ocr.txt`" + ` - LaTeX for a cropped equation
- ` + "`agent_system.txt`" + ` - Expert persona (%s agent, %s expertise, %s domain)

Keep placeholders in the same order when editing.
`
	return os.WriteFile(path, []byte(content), 0600)
}
