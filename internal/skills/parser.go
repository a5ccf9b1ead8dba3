package skills

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	SkillFilename  = "SKILL.md"
	LegacyJSONName = "skill.json"
	LegacyPromptName = "prompt.md"

	FrontmatterDelimiter = "---"

	maxSkillFileBytes = 50 * 1024
	maxAgentFileBytes = 10 * 1024
	maxFrontmatterDepth = 10
)

// frontmatter mirrors the YAML keys read from a SKILL.md header.
type frontmatter struct {
	Name          string            `yaml:"name"`
	Description   string            `yaml:"description"`
	Version       string            `yaml:"version"`
	Variables     map[string]string `yaml:"variables"`
	AllowedTools  []string          `yaml:"allowed-tools"`
	UserInvocable bool              `yaml:"user-invocable"`
	ArgumentHint  string            `yaml:"argument-hint"`
}

// ParseSkillFile reads and parses a SKILL.md file at path.
func ParseSkillFile(path string) (*Skill, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxSkillFileBytes {
		return nil, fmt.Errorf("skills: %s exceeds the %d byte SKILL.md size cap", path, maxSkillFileBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read skill file: %w", err)
	}
	return ParseSkill(data, filepath.Dir(path))
}

// ParseSkill parses SKILL.md content (YAML frontmatter + markdown body).
func ParseSkill(data []byte, dir string) (*Skill, error) {
	fmBytes, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(fmBytes, &raw); err != nil {
		return nil, fmt.Errorf("parse frontmatter: %w", err)
	}
	if depth := mapDepth(raw, 0); depth > maxFrontmatterDepth {
		return nil, fmt.Errorf("skills: frontmatter nesting depth %d exceeds cap %d", depth, maxFrontmatterDepth)
	}

	var fm frontmatter
	if err := yaml.Unmarshal(fmBytes, &fm); err != nil {
		return nil, fmt.Errorf("parse frontmatter: %w", err)
	}
	if fm.Name == "" {
		return nil, fmt.Errorf("skills: frontmatter is missing required key %q", "name")
	}
	if fm.Description == "" {
		return nil, fmt.Errorf("skills: frontmatter is missing required key %q", "description")
	}

	instructions, warned := SanitizeBody(strings.TrimSpace(string(body)))
	if warned {
		// Multiple injection-token occurrences required more than one
		// stripping pass; callers' loggers should surface this.
	}

	return &Skill{
		Name:          fm.Name,
		Description:   fm.Description,
		Version:       fm.Version,
		Instructions:  instructions,
		Variables:     fm.Variables,
		AllowedTools:  fm.AllowedTools,
		UserInvocable: fm.UserInvocable,
		ArgumentHint:  fm.ArgumentHint,
		Format:        FormatSkillMD,
		Path:          dir,
	}, nil
}

// splitFrontmatter separates a leading "---\n...\n---" YAML block from the
// markdown body that follows it.
func splitFrontmatter(data []byte) (frontmatter, body []byte, err error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	if !scanner.Scan() {
		return nil, nil, fmt.Errorf("skills: empty SKILL.md")
	}
	if strings.TrimSpace(scanner.Text()) != FrontmatterDelimiter {
		return nil, nil, fmt.Errorf("skills: SKILL.md missing opening frontmatter delimiter")
	}

	var fmLines []string
	closed := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == FrontmatterDelimiter {
			closed = true
			break
		}
		fmLines = append(fmLines, line)
	}
	if !closed {
		return nil, nil, fmt.Errorf("skills: SKILL.md missing closing frontmatter delimiter")
	}

	var bodyLines []string
	for scanner.Scan() {
		bodyLines = append(bodyLines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	return []byte(strings.Join(fmLines, "\n")), []byte(strings.Join(bodyLines, "\n")), nil
}

// mapDepth returns the maximum nesting depth of a decoded YAML document
// (maps and slices both count as one level).
func mapDepth(v interface{}, depth int) int {
	switch t := v.(type) {
	case map[string]interface{}:
		max := depth
		for _, child := range t {
			if d := mapDepth(child, depth+1); d > max {
				max = d
			}
		}
		return max
	case map[interface{}]interface{}:
		max := depth
		for _, child := range t {
			if d := mapDepth(child, depth+1); d > max {
				max = d
			}
		}
		return max
	case []interface{}:
		max := depth
		for _, child := range t {
			if d := mapDepth(child, depth+1); d > max {
				max = d
			}
		}
		return max
	default:
		return depth
	}
}

// legacySkillFile is the JSON shape of the pre-SKILL.md format.
type legacySkillFile struct {
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Version      string            `json:"version"`
	Variables    map[string]string `json:"variables"`
	AllowedTools []string          `json:"allowed_tools"`
}

// ParseLegacySkill reads skill.json + prompt.md from dir.
func ParseLegacySkill(dir string) (*Skill, error) {
	jsonPath := filepath.Join(dir, LegacyJSONName)
	promptPath := filepath.Join(dir, LegacyPromptName)

	jsonData, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	var legacy legacySkillFile
	if err := json.Unmarshal(jsonData, &legacy); err != nil {
		return nil, fmt.Errorf("parse skill.json: %w", err)
	}
	if legacy.Name == "" || legacy.Description == "" {
		return nil, fmt.Errorf("skills: skill.json missing name or description")
	}

	promptData, err := os.ReadFile(promptPath)
	if err != nil {
		return nil, fmt.Errorf("read prompt.md: %w", err)
	}

	instructions, _ := SanitizeBody(strings.TrimSpace(string(promptData)))
	return &Skill{
		Name:         legacy.Name,
		Description:  legacy.Description,
		Version:      legacy.Version,
		Instructions: instructions,
		Variables:    legacy.Variables,
		AllowedTools: legacy.AllowedTools,
		Format:       FormatLegacy,
		Path:         dir,
	}, nil
}
