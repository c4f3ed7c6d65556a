// Package persona wraps user text in per-mode prompt templates and assembles
// the provider message list from recent dialog history.
package persona

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/olzhask/aqylbot/internal/history"
	"github.com/olzhask/aqylbot/internal/intent"
	"github.com/olzhask/aqylbot/internal/session"
	"github.com/olzhask/aqylbot/llm"
)

//go:embed pack.yaml
var defaultPackYAML []byte

const DefaultHistoryWindow = 6

type modeEntry struct {
	Mode     string   `yaml:"mode"`
	Keywords []string `yaml:"keywords"`
	Template string   `yaml:"template"`
}

type packFile struct {
	Modes           []modeEntry `yaml:"modes"`
	DefaultTemplate string      `yaml:"default_template"`
}

// Pack holds the persona templates and the intent keyword rules. Rule order
// in the file is the classifier priority order.
type Pack struct {
	templates       map[session.Mode]string
	defaultTemplate string
	rules           []intent.Rule
}

// Load returns the embedded pack, or the pack at path when path is non-empty.
func Load(path string) (*Pack, error) {
	raw := defaultPackYAML
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("persona pack: %w", err)
		}
		raw = data
	}
	var pf packFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return nil, fmt.Errorf("persona pack: decode: %w", err)
	}
	if strings.TrimSpace(pf.DefaultTemplate) == "" {
		return nil, fmt.Errorf("persona pack: default_template is required")
	}

	p := &Pack{
		templates:       make(map[session.Mode]string, len(pf.Modes)),
		defaultTemplate: pf.DefaultTemplate,
	}
	for _, e := range pf.Modes {
		mode := session.Mode(strings.ToLower(strings.TrimSpace(e.Mode)))
		switch mode {
		case session.ModeStudy, session.ModeCoding, session.ModeCreative:
		default:
			return nil, fmt.Errorf("persona pack: unknown mode %q", e.Mode)
		}
		if strings.TrimSpace(e.Template) == "" {
			return nil, fmt.Errorf("persona pack: mode %q has no template", e.Mode)
		}
		p.templates[mode] = e.Template
		p.rules = append(p.rules, intent.Rule{Mode: mode, Keywords: e.Keywords})
	}
	return p, nil
}

// Rules returns the intent keyword rules in pack order.
func (p *Pack) Rules() []intent.Rule {
	return p.rules
}

// Prompt wraps userText in the template for mode. Pure template substitution.
func (p *Pack) Prompt(mode session.Mode, userText string) string {
	tmpl, ok := p.templates[mode]
	if !ok {
		tmpl = p.defaultTemplate
	}
	return strings.ReplaceAll(tmpl, "{text}", userText)
}

// Messages builds the provider message list: the last window history entries
// most-recent-last, then the templated user text.
func (p *Pack) Messages(mode session.Mode, userText string, recent []history.DialogMessage, window int) []llm.Message {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	if len(recent) > window {
		recent = recent[len(recent)-window:]
	}
	msgs := make([]llm.Message, 0, len(recent)+1)
	for _, m := range recent {
		role := llm.RoleUser
		if m.Role == history.RoleAssistant {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: m.Text})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: p.Prompt(mode, userText)})
	return msgs
}
