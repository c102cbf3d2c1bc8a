// Package modes holds the catalog of rewriting modes.
package modes

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// DefaultMode is used when neither a custom style nor a known mode is given.
const DefaultMode = "clarity"

// Mode is a named rewriting instruction.
type Mode struct {
	ID          string `yaml:"id"`
	Instruction string `yaml:"instruction"`
	Popular     bool   `yaml:"-"`
}

// Catalog is an immutable set of modes. It is safe for concurrent use.
type Catalog struct {
	order        []string
	instructions map[string]string
	popular      []string
	defaultMode  string
}

var builtinModes = []Mode{
	{ID: "deep_research", Instruction: "the prompt will be used by deep researching agent, it should enhance the quality such I get best research report covering each and every detail"},
	{ID: "clarity", Instruction: "Rewrite the prompt so that the LLM will produce an extremely clear and unambiguous response. Eliminate vagueness, add specific details, and enforce a logical structure."},
	{ID: "depth", Instruction: "Rewrite the prompt to guide the LLM toward a thoughtful, multi-layered response. Encourage analysis, rationale, and contextual depth."},
	{ID: "creative", Instruction: "Rewrite the prompt so the LLM delivers a highly imaginative and expressive response. Encourage the use of vivid examples, analogies, metaphors, and creative language."},
	{ID: "technical", Instruction: "Rewrite the prompt so that the LLM generates precise, technically accurate content using domain-specific terminology, clear step-by-step logic, and relevant technical context."},
	{ID: "concise", Instruction: "Rewrite the prompt to guide the LLM toward a brief, direct, and efficient response that retains clarity while reducing unnecessary verbosity."},
	{ID: "structured", Instruction: "Rewrite the prompt to instruct the LLM to format the response cleanly, using bullet points, markdown tables, hierarchical sections, and clear headings."},
	{ID: "teaching", Instruction: "Rewrite the prompt so that the LLM explains the topic progressively, with simple analogies, examples, and concepts tailored for a learning audience, including beginners."},
	{ID: "executive_summary", Instruction: "Rewrite the prompt to elicit a high-level summary optimized for decision-makers. Prioritize key takeaways, actionable insights, and strategic framing."},
	{ID: "contrarian", Instruction: "Rewrite the prompt to guide the LLM toward challenging conventional thinking. Encourage it to provide counterpoints, critique assumptions, and present alternative perspectives."},
	{ID: "step_by_step", Instruction: "Rewrite the prompt to instruct the LLM to break down the response into clear, ordered steps or phases, with detailed explanations for each."},
	{ID: "journalistic", Instruction: "Rewrite the prompt to elicit a response in the tone and structure of investigative or analytical journalism, including critical analysis, source-based reasoning, and consideration of bias."},
	{ID: "socratic", Instruction: "Rewrite the prompt to instruct the LLM to ask probing, thought-provoking questions instead of providing direct answers—encouraging reflective or critical thinking from the user."},
	{ID: "controversial", Instruction: "Rewrite the prompt to provoke the most controversial, unconventional, or polarizing response the LLM can generate. Push against mainstream assumptions while maintaining logical structure and factual support."},
	{ID: "devil_advocate", Instruction: "Rewrite the prompt to make the LLM take a strong opposing stance or play devil's advocate. Encourage it to argue against popular opinion or the user's assumed position using logic, evidence, or satire."},
	{ID: "debate_ready", Instruction: "Rewrite the prompt so that the LLM structures its answer like a formal argument — clearly outlining opposing viewpoints, rebuttals, and conclusion."},
	{ID: "startup_pitch", Instruction: "Rewrite the prompt to generate a polished, concise startup pitch. Include value proposition, problem/solution, market fit, and potential differentiation."},
	{ID: "real_world_applications", Instruction: "Rewrite the prompt to guide the LLM toward output that maps theoretical ideas to real-world use cases, industries, or everyday scenarios."},
	{ID: "personal_growth", Instruction: "Rewrite the prompt so the LLM provides actionable advice, reflection prompts, and behavioral frameworks for improving mindset, habits, or emotional resilience."},
	{ID: "marketing_landing_page", Instruction: "Rewrite the prompt to produce marketing copy suitable for a product or service landing page. Include headline, problem/solution framing, benefits, CTA, and testimonials."},
	{ID: "socratic_reverse", Instruction: "Rewrite the prompt to make the LLM ask a sequence of layered, increasingly specific questions back to the user in order to clarify the problem or uncover blind spots."},
	{ID: "satirical", Instruction: "Rewrite the prompt so that the LLM responds with sarcasm, exaggeration, or parody — in the style of satirical commentary or mockery of the topic."},
}

var builtinPopular = []string{"clarity", "controversial", "deep_research"}

var builtin = mustNew(builtinModes, builtinPopular, DefaultMode)

// Builtin returns the catalog compiled into the binary.
func Builtin() *Catalog {
	return builtin
}

// New builds a catalog. Mode ids must be unique and non-empty, every instruction
// non-empty, and every popular id and the default id must name a mode.
func New(modes []Mode, popular []string, defaultMode string) (*Catalog, error) {
	if len(modes) == 0 {
		return nil, errors.New("catalog must contain at least one mode")
	}
	c := &Catalog{
		order:        make([]string, 0, len(modes)),
		instructions: make(map[string]string, len(modes)),
		popular:      make([]string, 0, len(popular)),
		defaultMode:  strings.TrimSpace(defaultMode),
	}
	for _, m := range modes {
		id := strings.TrimSpace(m.ID)
		if id == "" {
			return nil, errors.New("mode id must not be empty")
		}
		if strings.TrimSpace(m.Instruction) == "" {
			return nil, fmt.Errorf("mode %q has an empty instruction", id)
		}
		if _, ok := c.instructions[id]; ok {
			return nil, fmt.Errorf("duplicate mode %q", id)
		}
		c.order = append(c.order, id)
		c.instructions[id] = m.Instruction
	}
	seen := make(map[string]struct{}, len(popular))
	for _, id := range popular {
		id = strings.TrimSpace(id)
		if _, ok := c.instructions[id]; !ok {
			return nil, fmt.Errorf("popular mode %q is not defined", id)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		c.popular = append(c.popular, id)
	}
	if _, ok := c.instructions[c.defaultMode]; !ok {
		return nil, fmt.Errorf("default mode %q is not defined", c.defaultMode)
	}
	return c, nil
}

func mustNew(modes []Mode, popular []string, defaultMode string) *Catalog {
	c, err := New(modes, popular, defaultMode)
	if err != nil {
		panic("modes: " + err.Error())
	}
	return c
}

type catalogFile struct {
	Default string   `yaml:"default"`
	Popular []string `yaml:"popular"`
	Modes   []Mode   `yaml:"modes"`
}

// LoadFile reads a catalog from a YAML file of the form
//
//	default: clarity
//	popular: [clarity]
//	modes:
//	  - id: clarity
//	    instruction: Rewrite the prompt ...
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a YAML catalog. See LoadFile for the format.
func Parse(data []byte) (*Catalog, error) {
	var raw catalogFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	defaultMode := raw.Default
	if strings.TrimSpace(defaultMode) == "" {
		defaultMode = DefaultMode
	}
	return New(raw.Modes, raw.Popular, defaultMode)
}

// InstructionFor returns the instruction text for id.
func (c *Catalog) InstructionFor(id string) (string, bool) {
	instruction, ok := c.instructions[strings.TrimSpace(id)]
	return instruction, ok
}

// ListPopular returns the popular mode ids in curation order.
func (c *Catalog) ListPopular() []string {
	return append([]string(nil), c.popular...)
}

// ListAll returns every mode id in definition order.
func (c *Catalog) ListAll() []string {
	return append([]string(nil), c.order...)
}

// Default returns the id of the default mode.
func (c *Catalog) Default() string {
	return c.defaultMode
}

// IsPopular reports whether id is in the popular subset.
func (c *Catalog) IsPopular(id string) bool {
	for _, p := range c.popular {
		if p == id {
			return true
		}
	}
	return false
}

// Modes returns every mode in definition order.
func (c *Catalog) Modes() []Mode {
	out := make([]Mode, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, Mode{ID: id, Instruction: c.instructions[id], Popular: c.IsPopular(id)})
	}
	return out
}

// Label returns a display label for a mode id: "step_by_step" becomes "Step By Step".
func Label(id string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(id, "_", " "))
}
