// Package config owns the persisted configuration document: global settings
// plus the managed-sessions tree with per-session plan progress. The Store is
// the single in-memory owner of the document; the session registry and the
// progress tracker are mutators over its sub-trees and every mutation is
// flushed in full before the operation completes.
//
// The Store is not safe for concurrent use; the application has a single
// mutator (the TUI event loop or a CLI invocation) per process.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/lazyaider/lazyaider/internal/logging"
)

var configLog = logging.ForComponent(logging.CompConfig)

// Defaults applied when keys are missing or carry the wrong type.
const (
	DefaultLLMModel             = "gpt-3.5-turbo"
	DefaultThemeName            = "light"
	DefaultTextEditor           = "nano"
	DefaultSidepanePercentWidth = 20
	DefaultDelaySendInput       = 0.5
	DefaultLabelColorCompleted  = "green"
	DefaultLabelColorCurrent    = "yellow"
)

// Settings are the global, typed configuration values.
type Settings struct {
	LLMModel             string  `yaml:"llm_model"`
	LLMAPIKey            string  `yaml:"llm_api_key,omitempty"`
	ThemeName            string  `yaml:"theme_name"`
	TextEditor           string  `yaml:"text_editor,omitempty"`
	SidepanePercentWidth int     `yaml:"sidepane_percent_width"`
	DelaySendInput       float64 `yaml:"delay_send_input"`
	LabelColorCompleted  string  `yaml:"label_color_completed"`
	LabelColorCurrent    string  `yaml:"label_color_current"`

	// PromptOverridePath is the global plan-generation template override.
	PromptOverridePath string `yaml:"plan_generation_prompt_override_path,omitempty"`
}

// Session is one managed session entry: the binding between a tmux session
// name and its active plan plus per-plan progress.
type Session struct {
	Name string

	// ActivePlan is the slug of the plan bound to this session, or "".
	ActivePlan string

	// PromptOverridePath is the per-session template override, or "".
	PromptOverridePath string

	// progress maps plan slug -> last step index (-1 means not started).
	progress map[string]int
}

// extraKey is an unknown top-level key preserved for round-trip fidelity.
type extraKey struct {
	key  string
	node *yaml.Node
}

// Store owns the configuration document in memory.
type Store struct {
	path     string
	baseDir  string
	Settings Settings
	sessions []*Session
	extra    []extraKey
}

// sessionYAML is the on-disk shape of one managed session.
type sessionYAML struct {
	ActivePlanName     string                      `yaml:"active_plan_name,omitempty"`
	PlanProgress       map[string]planProgressYAML `yaml:"plan_progress,omitempty"`
	PromptOverridePath string                      `yaml:"plan_generation_prompt_override_path,omitempty"`
}

type planProgressYAML struct {
	LastAiderStep *int `yaml:"last_aider_step,omitempty"`
}

// knownKeys are the top-level keys decoded into the typed schema.
var knownKeys = map[string]bool{
	"llm_model":                            true,
	"llm_api_key":                          true,
	"theme_name":                           true,
	"text_editor":                          true,
	"sidepane_percent_width":               true,
	"delay_send_input":                     true,
	"label_color_completed":                true,
	"label_color_current":                  true,
	"plan_generation_prompt_override_path": true,
	"managed_sessions":                     true,
}

func defaultSettings() Settings {
	return Settings{
		LLMModel:             DefaultLLMModel,
		ThemeName:            DefaultThemeName,
		TextEditor:           DefaultTextEditor,
		SidepanePercentWidth: DefaultSidepanePercentWidth,
		DelaySendInput:       DefaultDelaySendInput,
		LabelColorCompleted:  DefaultLabelColorCompleted,
		LabelColorCurrent:    DefaultLabelColorCurrent,
	}
}

// LoadDefault loads the config using the standard search path (working
// directory, then home). When no file exists a new store is created that
// will be written to the home directory on first flush.
func LoadDefault() (*Store, error) {
	if path := FindFile(); path != "" {
		return Load(path)
	}
	path, err := DefaultPath()
	if err != nil {
		return nil, fmt.Errorf("failed to determine config path: %w", err)
	}
	configLog.Info("config_new", slog.String("path", path))
	return &Store{
		path:     path,
		baseDir:  filepath.Dir(path),
		Settings: defaultSettings(),
	}, nil
}

// Load reads the config document at path. Missing or wrong-typed known keys
// are replaced by defaults with a warning; unknown keys are preserved.
func Load(path string) (*Store, error) {
	s := &Store{
		path:     path,
		baseDir:  filepath.Dir(path),
		Settings: defaultSettings(),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		// Empty or non-mapping document: start from defaults.
		if len(data) > 0 {
			configLog.Warn("config_not_mapping", slog.String("path", path))
		}
		return s, nil
	}

	root := doc.Content[0]
	for i := 0; i+1 < len(root.Content); i += 2 {
		keyNode, valNode := root.Content[i], root.Content[i+1]
		key := keyNode.Value

		switch key {
		case "llm_model":
			decodeString(valNode, key, &s.Settings.LLMModel, DefaultLLMModel)
		case "llm_api_key":
			decodeString(valNode, key, &s.Settings.LLMAPIKey, "")
		case "theme_name":
			decodeString(valNode, key, &s.Settings.ThemeName, DefaultThemeName)
		case "text_editor":
			decodeString(valNode, key, &s.Settings.TextEditor, DefaultTextEditor)
		case "sidepane_percent_width":
			decodeInt(valNode, key, &s.Settings.SidepanePercentWidth, DefaultSidepanePercentWidth)
		case "delay_send_input":
			decodeFloat(valNode, key, &s.Settings.DelaySendInput, DefaultDelaySendInput)
		case "label_color_completed":
			decodeString(valNode, key, &s.Settings.LabelColorCompleted, DefaultLabelColorCompleted)
		case "label_color_current":
			decodeString(valNode, key, &s.Settings.LabelColorCurrent, DefaultLabelColorCurrent)
		case "plan_generation_prompt_override_path":
			decodeString(valNode, key, &s.Settings.PromptOverridePath, "")
		case "managed_sessions":
			s.decodeSessions(valNode)
		default:
			s.extra = append(s.extra, extraKey{key: key, node: valNode})
		}
	}

	return s, nil
}

// decodeSessions reads the managed_sessions mapping, preserving the document
// order of session names. Malformed entries are reset with a warning rather
// than failing the load.
func (s *Store) decodeSessions(node *yaml.Node) {
	if node.Kind != yaml.MappingNode {
		if node.Kind != yaml.ScalarNode || node.Value != "" {
			configLog.Warn("config_sessions_not_mapping")
		}
		return
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		var raw sessionYAML
		if err := node.Content[i+1].Decode(&raw); err != nil {
			configLog.Warn("config_session_malformed",
				slog.String("session", name),
				slog.String("error", err.Error()))
			raw = sessionYAML{}
		}

		sess := &Session{
			Name:               name,
			ActivePlan:         raw.ActivePlanName,
			PromptOverridePath: raw.PromptOverridePath,
			progress:           make(map[string]int),
		}
		for slug, prog := range raw.PlanProgress {
			if prog.LastAiderStep == nil {
				continue
			}
			step := *prog.LastAiderStep
			if step < NotStarted {
				step = NotStarted
			}
			sess.progress[slug] = step
		}
		s.sessions = append(s.sessions, sess)
	}
}

func decodeString(node *yaml.Node, key string, dst *string, fallback string) {
	var v string
	if err := node.Decode(&v); err != nil {
		configLog.Warn("config_bad_value", slog.String("key", key))
		*dst = fallback
		return
	}
	*dst = v
}

func decodeInt(node *yaml.Node, key string, dst *int, fallback int) {
	var v int
	if err := node.Decode(&v); err != nil {
		configLog.Warn("config_bad_value", slog.String("key", key))
		*dst = fallback
		return
	}
	*dst = v
}

func decodeFloat(node *yaml.Node, key string, dst *float64, fallback float64) {
	var v float64
	if err := node.Decode(&v); err != nil || v < 0 {
		configLog.Warn("config_bad_value", slog.String("key", key))
		*dst = fallback
		return
	}
	*dst = v
}

// Path returns the config file path.
func (s *Store) Path() string {
	return s.path
}

// Flush writes the whole document atomically: the new content is fully
// constructed in memory, written to a temp file, synced, then renamed over
// the previous file. A failure at any point leaves the prior file intact.
func (s *Store) Flush() error {
	root := &yaml.Node{Kind: yaml.MappingNode}

	var settingsNode yaml.Node
	if err := settingsNode.Encode(s.Settings); err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	root.Content = append(root.Content, settingsNode.Content...)

	sessionsNode, err := s.encodeSessions()
	if err != nil {
		return err
	}
	root.Content = append(root.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: "managed_sessions"},
		sessionsNode)

	for _, ex := range s.extra {
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: ex.key},
			ex.node)
	}

	data, err := yaml.Marshal(root)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp config: %w", err)
	}
	if err := syncFile(tmpPath); err != nil {
		// Rename still gives crash safety on most filesystems.
		configLog.Warn("config_fsync_failed", slog.String("error", err.Error()))
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize config save: %w", err)
	}
	return nil
}

func (s *Store) encodeSessions() (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, sess := range s.sessions {
		raw := sessionYAML{
			ActivePlanName:     sess.ActivePlan,
			PromptOverridePath: sess.PromptOverridePath,
		}
		if len(sess.progress) > 0 {
			raw.PlanProgress = make(map[string]planProgressYAML, len(sess.progress))
			slugs := make([]string, 0, len(sess.progress))
			for slug := range sess.progress {
				slugs = append(slugs, slug)
			}
			sort.Strings(slugs)
			for _, slug := range slugs {
				step := sess.progress[slug]
				raw.PlanProgress[slug] = planProgressYAML{LastAiderStep: &step}
			}
		}

		var valNode yaml.Node
		if err := valNode.Encode(raw); err != nil {
			return nil, fmt.Errorf("failed to encode session %s: %w", sess.Name, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: sess.Name},
			&valNode)
	}
	return node, nil
}

func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
