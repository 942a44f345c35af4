package config

import (
	"os"
	"path/filepath"
	"strings"
)

// FileName is the persisted configuration document.
const FileName = ".lazyaider.conf.yml"

// DataDirName is the project-local data directory holding plans and the
// editable prompt template.
const DataDirName = ".lazyaider"

// PlansSubdir is the plans directory under DataDirName.
const PlansSubdir = "plans"

// PromptTemplateFileName is the TUI-editable prompt template copy.
const PromptTemplateFileName = "plan_prompt.md"

// FindFile searches for the config file in the working directory, then in
// the home directory. Returns "" when neither exists.
func FindFile() string {
	if wd, err := os.Getwd(); err == nil {
		p := filepath.Join(wd, FileName)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(home, FileName)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// DefaultPath is where a new config file is created when none exists: the
// home directory, matching the search fallback.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, FileName), nil
}

// PlansDir returns the plans directory relative to the working directory.
func PlansDir() string {
	return filepath.Join(DataDirName, PlansSubdir)
}

// PromptTemplatePath returns the editable template copy path, relative to
// the working directory.
func PromptTemplatePath() string {
	return filepath.Join(DataDirName, PromptTemplateFileName)
}

// LogDir returns the directory for log files.
func LogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DataDirName
	}
	return filepath.Join(home, DataDirName)
}

// expandTilde expands a leading ~ to the user's home directory.
func expandTilde(path string) string {
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// resolvePath expands ~ and resolves relative paths against baseDir, the
// directory holding the config file. Absolute and empty paths pass through.
func resolvePath(path, baseDir string) string {
	if path == "" {
		return ""
	}
	expanded := expandTilde(path)
	if filepath.IsAbs(expanded) {
		return expanded
	}
	if baseDir == "" {
		abs, err := filepath.Abs(expanded)
		if err != nil {
			return expanded
		}
		return abs
	}
	return filepath.Join(baseDir, expanded)
}
