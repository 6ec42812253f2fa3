package usecases

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/mizuki-h/diaryrag/internal/domain/ports"
)

// Prompt resource file names resolved against the prompts directory.
const (
	interpolateTemplateFile = "interpolate.md"
	styleGuideFile          = "style_guide.md"
)

// Defaults substituted into the prompt when the caller left a slot empty.
const (
	noContextPhrase = "文脈情報は提供されませんでした。"
	noHintPhrase    = "特筆すべきヒントはありません。"
)

// Generator builds a prompt from the interpolation template, calls a
// text-generation backend, and falls back to a deterministic synthesizer
// when the backend is unavailable or its output fails self-check.
type Generator struct {
	backend    ports.TextGenerator // nil means fallback-only
	template   string
	styleGuide string
	params     ports.GenerationParams
}

// NewGenerator loads the prompt resources and wires the backend.
// A missing template file is a fatal configuration error, raised here at
// construction time rather than per request.
func NewGenerator(backend ports.TextGenerator, promptsDir string, params ports.GenerationParams) (*Generator, error) {
	if promptsDir == "" {
		promptsDir = "./prompts"
	}
	template, err := loadPromptFile(filepath.Join(promptsDir, interpolateTemplateFile))
	if err != nil {
		return nil, err
	}
	styleGuide, err := loadPromptFile(filepath.Join(promptsDir, styleGuideFile))
	if err != nil {
		return nil, err
	}
	if params.MaxNewTokens <= 0 {
		params.MaxNewTokens = 320
	}
	if params.Temperature <= 0 {
		params.Temperature = 0.7
	}
	if params.TopP <= 0 {
		params.TopP = 0.9
	}
	return &Generator{
		backend:    backend,
		template:   template,
		styleGuide: styleGuide,
		params:     params,
	}, nil
}

func loadPromptFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("required prompt file is missing: %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// GenerateInterpolation renders the prompt, asks the backend for a
// passage, and vets the result. Any backend failure or rejected output
// substitutes the deterministic fallback; the caller always receives a
// well-formed passage. An empty hint means none was supplied.
func (g *Generator) GenerateInterpolation(ctx context.Context, date, contextText, hint string) string {
	prompt := g.renderPrompt(date, contextText, hint)

	generated := ""
	if g.backend == nil {
		log.Printf("[WARN] %v; falling back to rule-based output", ErrGeneratorUnavailable)
	} else {
		text, err := g.backend.Generate(ctx, prompt, g.params)
		if err != nil {
			log.Printf("[WARN] LLM generation failed (%v); falling back to rule-based output", err)
		} else {
			generated = text
		}
	}

	if strings.TrimSpace(generated) == "" {
		generated = FallbackGenerate(date, contextText, hint)
	} else {
		check := SelfCheck(generated, Facts{Date: date})
		if !check.Passed {
			log.Printf("[INFO] self-check failed (%s); substituting fallback output", check.RetryPrompt)
			generated = FallbackGenerate(date, contextText, hint)
		}
	}

	return strings.TrimSpace(generated)
}

// renderPrompt fills the named placeholders of the template.
func (g *Generator) renderPrompt(date, contextText, hint string) string {
	contextText = strings.TrimSpace(contextText)
	if contextText == "" {
		contextText = noContextPhrase
	}
	if hint == "" {
		hint = noHintPhrase
	}
	return strings.NewReplacer(
		"{date}", date,
		"{context}", contextText,
		"{hint}", hint,
		"{style_guide}", g.styleGuide,
	).Replace(g.template)
}
