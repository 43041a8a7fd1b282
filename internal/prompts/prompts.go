package prompts

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultYAML []byte

type Answer struct {
	System   string `yaml:"system"`
	Fallback string `yaml:"fallback"`
}

type Tool struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type Briefing struct {
	Title    string `yaml:"title"`
	System   string `yaml:"system"`
	Request  string `yaml:"request"`
	Tool     Tool   `yaml:"tool"`
	Fallback string `yaml:"fallback"`
}

type Search struct {
	System   string `yaml:"system"`
	Fallback string `yaml:"fallback"`
}

type Voice struct {
	ErrorReply string `yaml:"error_reply"`
}

// Set is every prompt and fallback string the capabilities use.
type Set struct {
	Answer   Answer   `yaml:"answer"`
	Briefing Briefing `yaml:"briefing"`
	Search   Search   `yaml:"search"`
	Voice    Voice    `yaml:"voice"`
}

// Default returns the embedded prompt set.
func Default() Set {
	s, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("prompts: embedded prompts.yaml: %v", err))
	}
	return s
}

// Load reads an override file. Keys missing from the file keep their
// embedded values; an empty path returns the embedded set.
func Load(path string) (Set, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Set{}, err
	}
	s := Default()
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Set{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return s, s.validate()
}

// Parse decodes a complete prompt set.
func Parse(b []byte) (Set, error) {
	var s Set
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Set{}, err
	}
	return s, s.validate()
}

func (s Set) validate() error {
	required := map[string]string{
		"answer.fallback":    s.Answer.Fallback,
		"briefing.title":     s.Briefing.Title,
		"briefing.fallback":  s.Briefing.Fallback,
		"briefing.tool.name": s.Briefing.Tool.Name,
		"search.fallback":    s.Search.Fallback,
		"voice.error_reply":  s.Voice.ErrorReply,
	}
	for k, v := range required {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("prompts: %s must not be empty", k)
		}
	}
	return nil
}
