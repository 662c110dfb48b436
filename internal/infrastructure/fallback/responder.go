// Package fallback answers medical questions from a static keyword knowledge
// base. It is the last step of the answer chain and never fails.
package fallback

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/medical-rag-assistant/internal/core/domain"
)

//go:embed knowledge.yaml
var defaultKnowledge []byte

type Aspect struct {
	Keywords []string `yaml:"keywords"`
	Response string   `yaml:"response"`
}

type Entry struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Response string   `yaml:"response"`
	Aspects  []Aspect `yaml:"aspects"`
}

type KnowledgeBase struct {
	DefaultResponse string  `yaml:"default_response"`
	Entries         []Entry `yaml:"entries"`
}

type Responder struct {
	kb KnowledgeBase
}

// Load reads the knowledge base from path, or the bundled one when path is
// empty. Any read or validation problem is a configuration failure.
func Load(path string) (*Responder, error) {
	raw := defaultKnowledge
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, domain.WrapError(domain.ErrConfiguration, "read fallback knowledge base", err)
		}
		raw = data
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Responder, error) {
	var kb KnowledgeBase
	if err := yaml.Unmarshal(raw, &kb); err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "parse fallback knowledge base", err)
	}
	if err := kb.validate(); err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "validate fallback knowledge base", err)
	}
	kb.normalize()
	return &Responder{kb: kb}, nil
}

// Respond returns the text of the first entry whose keyword occurs in the
// question, refined by the first matching aspect, or the default response.
func (r *Responder) Respond(question string) string {
	q := strings.ToLower(question)
	for _, entry := range r.kb.Entries {
		if !containsAny(q, entry.Keywords) {
			continue
		}
		for _, aspect := range entry.Aspects {
			if containsAny(q, aspect.Keywords) {
				return aspect.Response
			}
		}
		return entry.Response
	}
	return r.kb.DefaultResponse
}

func (r *Responder) Entries() int { return len(r.kb.Entries) }

func (kb *KnowledgeBase) validate() error {
	if strings.TrimSpace(kb.DefaultResponse) == "" {
		return errors.New("default_response is required")
	}
	for i, entry := range kb.Entries {
		if len(entry.Keywords) == 0 {
			return fmt.Errorf("entry %d (%s): at least one keyword is required", i, entry.Name)
		}
		if strings.TrimSpace(entry.Response) == "" {
			return fmt.Errorf("entry %d (%s): response is required", i, entry.Name)
		}
		for j, aspect := range entry.Aspects {
			if len(aspect.Keywords) == 0 || strings.TrimSpace(aspect.Response) == "" {
				return fmt.Errorf("entry %d (%s) aspect %d: keywords and response are required", i, entry.Name, j)
			}
		}
	}
	return nil
}

func (kb *KnowledgeBase) normalize() {
	for i := range kb.Entries {
		kb.Entries[i].Keywords = lowerAll(kb.Entries[i].Keywords)
		for j := range kb.Entries[i].Aspects {
			kb.Entries[i].Aspects[j].Keywords = lowerAll(kb.Entries[i].Aspects[j].Keywords)
		}
	}
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
