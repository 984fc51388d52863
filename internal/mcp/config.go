// Package mcp provides two halves of Model Context Protocol integration:
// a validator for the IDE-facing mcp.config.json file, and a stdio MCP
// server exposing the knowledge base as tools.
package mcp

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
)

// ConfigFile mirrors mcp.config.json: named server processes plus prompts
// bound to one or more servers. The file is consumed by IDE tooling; this
// package only loads and validates it.
type ConfigFile struct {
	Servers map[string]ServerConfig `json:"servers"`
	Prompts []PromptConfig          `json:"prompts,omitempty"`
}

// ServerConfig describes one server process an IDE would spawn.
type ServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Cwd     string            `json:"cwd,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// PromptConfig is a named prompt bound to one or more servers.
type PromptConfig struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Servers     []string `json:"servers"`
	Text        string   `json:"text,omitempty"`
}

// Issue severity levels. Errors make the file unusable; warnings describe
// conditions the IDE may or may not tolerate.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Issue is one finding from ConfigFile validation.
type Issue struct {
	Severity string
	Server   string // empty for file-level issues
	Message  string
}

func (i Issue) String() string {
	if i.Server == "" {
		return fmt.Sprintf("%s: %s", i.Severity, i.Message)
	}
	return fmt.Sprintf("%s: server %q: %s", i.Severity, i.Server, i.Message)
}

// envRefPattern matches ${VAR} and $VAR references in env values.
var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// LoadConfigFile reads and parses an mcp.config.json file. Parse failures
// are errors; semantic problems are reported by Validate.
func LoadConfigFile(path string) (*ConfigFile, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from config/flag
	if err != nil {
		return nil, fmt.Errorf("reading MCP config: %w", err)
	}

	var cfg ConfigFile
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing MCP config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate reports structural and environment problems with the config.
// Environment references are flagged, never resolved: the IDE spawning the
// server performs the substitution, so an unset variable here means the
// spawned process would receive an empty value.
func (c *ConfigFile) Validate(lookupEnv func(string) (string, bool)) []Issue {
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}

	var issues []Issue

	if len(c.Servers) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Message:  "no servers declared",
		})
	}

	for name, server := range c.Servers {
		if server.Command == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Server:   name,
				Message:  "missing required command",
			})
		}

		if server.Cwd != "" {
			if _, err := os.Stat(server.Cwd); err != nil {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Server:   name,
					Message:  fmt.Sprintf("working directory %q does not exist", server.Cwd),
				})
			}
		}

		for key, value := range server.Env {
			for _, ref := range extractEnvRefs(value) {
				if _, ok := lookupEnv(ref); !ok {
					issues = append(issues, Issue{
						Severity: SeverityWarning,
						Server:   name,
						Message:  fmt.Sprintf("env %s references %s, which is not set in the current environment", key, ref),
					})
				}
			}
		}
	}

	for _, prompt := range c.Prompts {
		if prompt.Name == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Message:  "prompt with empty name",
			})
			continue
		}
		if len(prompt.Servers) == 0 {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("prompt %q is bound to no servers", prompt.Name),
			})
		}
		for _, serverName := range prompt.Servers {
			if _, ok := c.Servers[serverName]; !ok {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Message:  fmt.Sprintf("prompt %q references unknown server %q", prompt.Name, serverName),
				})
			}
		}
	}

	return issues
}

// HasErrors reports whether any issue is error-severity.
func HasErrors(issues []Issue) bool {
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

// extractEnvRefs returns the environment variable names referenced in a
// value, in order of appearance.
func extractEnvRefs(value string) []string {
	var refs []string
	for _, match := range envRefPattern.FindAllStringSubmatch(value, -1) {
		if match[1] != "" {
			refs = append(refs, match[1])
		} else {
			refs = append(refs, match[2])
		}
	}
	return refs
}
