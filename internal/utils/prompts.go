package utils

import (
	"embed"
	"fmt"
	"regexp"
	"strings"
)

//go:embed prompts
var promptFiles embed.FS

var placeholderPattern = regexp.MustCompile(`\{\{\.(\w+)\}\}`)

// LoadPrompt loads a prompt from the embedded markdown files
func LoadPrompt(path string) (string, error) {
	content, err := promptFiles.ReadFile(fmt.Sprintf("prompts/%s.md", path))
	if err != nil {
		return "", fmt.Errorf("failed to load prompt %s: %w", path, err)
	}
	return strings.TrimSpace(string(content)), nil
}

// LoadPromptWithContext loads a prompt and replaces {{.VariableName}} placeholders.
// A placeholder left without a value is an error.
func LoadPromptWithContext(path string, context map[string]string) (string, error) {
	content, err := LoadPrompt(path)
	if err != nil {
		return "", err
	}

	var missing []string
	content = placeholderPattern.ReplaceAllStringFunc(content, func(m string) string {
		key := placeholderPattern.FindStringSubmatch(m)[1]
		if v, ok := context[key]; ok {
			return v
		}
		missing = append(missing, key)
		return m
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("prompt %s: missing values for %s", path, strings.Join(missing, ", "))
	}
	return content, nil
}
