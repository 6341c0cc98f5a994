package internal

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"
)

// CustomTemplateKey is the key of a template supplied with --prompt
const CustomTemplateKey = "custom"

// PromptData for template injection
type PromptData struct {
	Keyword  string
	Goal     string
	Context  string
	Language string
	Region   string
	Limit    int
	Title    string
	Channel  string
	URL      string
}

// PromptTemplate is one synthesis instruction
type PromptTemplate struct {
	Key         string `yaml:"key"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Prompt      string `yaml:"prompt"`
}

// PromptSet is the parsed templates.yaml
type PromptSet struct {
	ContextHeader string           `yaml:"context_header"`
	Extract       string           `yaml:"extract"`
	ModelSearch   string           `yaml:"model_search"`
	Templates     []PromptTemplate `yaml:"templates"`
}

// PromptManager handles loading and processing prompt templates
type PromptManager struct {
	configDir     string
	templatesFile string

	mu     sync.Mutex
	set    *PromptSet
	custom *PromptTemplate
}

// NewPromptManager creates a new prompt manager. templatesFile overrides
// the templates.yaml in the config directory when set.
func NewPromptManager(configDir, templatesFile string) *PromptManager {
	return &PromptManager{
		configDir:     configDir,
		templatesFile: templatesFile,
	}
}

// SetCustomPrompt registers an extra template from a prompt string or a
// file path
func (pm *PromptManager) SetCustomPrompt(setting string) error {
	if setting == "" {
		return nil
	}
	content := setting
	if IsLikelyFilePath(setting) && FileExists(setting) {
		data, err := os.ReadFile(setting)
		if err != nil {
			return fmt.Errorf("reading prompt file: %w", err)
		}
		content = string(data)
	}
	if _, err := template.New(CustomTemplateKey).Parse(content); err != nil {
		return fmt.Errorf("parsing custom prompt: %w", err)
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.custom = &PromptTemplate{
		Key:    CustomTemplateKey,
		Title:  "Custom analysis",
		Prompt: content,
	}
	return nil
}

// Load reads the template set once. Missing top-level prompts fall back to
// the embedded defaults.
func (pm *PromptManager) Load() (*PromptSet, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.set != nil {
		return pm.set, nil
	}

	defaults, err := parsePromptSet(mustEmbedded("templates.yaml"))
	if err != nil {
		return nil, fmt.Errorf("parsing embedded templates: %w", err)
	}

	path := pm.templatesFile
	if path == "" && pm.configDir != "" {
		if p := filepath.Join(pm.configDir, "templates.yaml"); FileExists(p) {
			path = p
		}
	}

	set := defaults
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading templates: %w", err)
		}
		user, err := parsePromptSet(data)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		if user.ContextHeader == "" {
			user.ContextHeader = defaults.ContextHeader
		}
		if user.Extract == "" {
			user.Extract = defaults.Extract
		}
		if user.ModelSearch == "" {
			user.ModelSearch = defaults.ModelSearch
		}
		if len(user.Templates) == 0 {
			user.Templates = defaults.Templates
		}
		set = user
	}

	pm.set = set
	return set, nil
}

func parsePromptSet(data []byte) (*PromptSet, error) {
	var set PromptSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(set.Templates))
	for i, t := range set.Templates {
		if t.Key == "" {
			return nil, fmt.Errorf("template %d has no key", i+1)
		}
		if t.Key == CustomTemplateKey {
			return nil, fmt.Errorf("template key %q is reserved", CustomTemplateKey)
		}
		if _, dup := seen[t.Key]; dup {
			return nil, fmt.Errorf("duplicate template key %q", t.Key)
		}
		if strings.TrimSpace(t.Prompt) == "" {
			return nil, fmt.Errorf("template %q has an empty prompt", t.Key)
		}
		seen[t.Key] = struct{}{}
	}
	return &set, nil
}

// Templates returns the templates in declared display order
func (pm *PromptManager) Templates() ([]PromptTemplate, error) {
	set, err := pm.Load()
	if err != nil {
		return nil, err
	}
	out := slices.Clone(set.Templates)
	pm.mu.Lock()
	if pm.custom != nil {
		out = append(out, *pm.custom)
	}
	pm.mu.Unlock()
	return out, nil
}

// Lookup finds a template by key
func (pm *PromptManager) Lookup(key string) (PromptTemplate, error) {
	templates, err := pm.Templates()
	if err != nil {
		return PromptTemplate{}, err
	}
	for _, t := range templates {
		if t.Key == key {
			return t, nil
		}
	}
	return PromptTemplate{}, fmt.Errorf("%w: unknown template %q", ErrInvalidOption, key)
}

// ResolveKeys validates requested template keys and returns them in
// declared order. No keys selects every template, "custom" included when set.
func (pm *PromptManager) ResolveKeys(requested []string) ([]string, error) {
	templates, err := pm.Templates()
	if err != nil {
		return nil, err
	}

	var order []string
	for _, t := range templates {
		order = append(order, t.Key)
	}
	if len(requested) == 0 {
		return order, nil
	}

	want := make(map[string]struct{}, len(requested))
	for _, k := range requested {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if !slices.Contains(order, k) {
			return nil, fmt.Errorf("%w: unknown template %q (available: %s)", ErrInvalidOption, k, strings.Join(order, ", "))
		}
		want[k] = struct{}{}
	}

	var out []string
	for _, k := range order {
		if _, ok := want[k]; ok {
			out = append(out, k)
		}
	}
	return out, nil
}

// CreatePrompt builds the synthesis prompt for one template
func (pm *PromptManager) CreatePrompt(key string, data PromptData) (string, error) {
	t, err := pm.Lookup(key)
	if err != nil {
		return "", err
	}
	return buildPromptFromTemplate(key, t.Prompt, data)
}

// CreateContextHeader renders the text placed above the video block
func (pm *PromptManager) CreateContextHeader(data PromptData) (string, error) {
	set, err := pm.Load()
	if err != nil {
		return "", err
	}
	return buildPromptFromTemplate("context_header", set.ContextHeader, data)
}

// CreateExtractionPrompt renders the per-video extraction rubric
func (pm *PromptManager) CreateExtractionPrompt(data PromptData) (string, error) {
	set, err := pm.Load()
	if err != nil {
		return "", err
	}
	return buildPromptFromTemplate("extract", set.Extract, data)
}

// CreateSearchPrompt renders the model-driven discovery prompt
func (pm *PromptManager) CreateSearchPrompt(data PromptData) (string, error) {
	set, err := pm.Load()
	if err != nil {
		return "", err
	}
	return buildPromptFromTemplate("model_search", set.ModelSearch, data)
}

// buildPromptFromTemplate builds the AI prompt from template content
func buildPromptFromTemplate(name, content string, data PromptData) (string, error) {
	tmpl, err := template.New(name).Parse(content)
	if err != nil {
		return "", fmt.Errorf("parsing %s template: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing %s template: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// IsLikelyFilePath uses heuristics to determine if a string is likely a file path
func IsLikelyFilePath(s string) bool {
	if strings.Contains(s, "/") || strings.Contains(s, "\\") {
		return true
	}

	if strings.Contains(s, ".txt") || strings.Contains(s, ".md") ||
		strings.Contains(s, ".yaml") || strings.Contains(s, ".tmpl") {
		return true
	}

	// long strings are prompts
	if len(s) > 200 {
		return false
	}

	return !strings.Contains(s, " ") && !strings.Contains(s, "\n")
}
