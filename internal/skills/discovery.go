package skills

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ValidateDirName checks a skill directory's base name against the
// invariant: not empty, not "..", not absolute, and free of '/', '\', NUL.
// A name consisting only of [A-Za-z0-9._-] is accepted.
func ValidateDirName(name string) error {
	if name == "" {
		return fmt.Errorf("skills: directory name must not be empty")
	}
	if name == ".." {
		return fmt.Errorf("skills: directory name must not be %q", "..")
	}
	if filepath.IsAbs(name) {
		return fmt.Errorf("skills: directory name must not be absolute")
	}
	if strings.ContainsAny(name, "/\\") || strings.ContainsRune(name, 0) {
		return fmt.Errorf("skills: directory name must not contain '/', '\\\\', or NUL")
	}
	for _, r := range name {
		safe := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '_' || r == '-'
		if !safe {
			return fmt.Errorf("skills: directory name %q contains a character outside [A-Za-z0-9._-]", name)
		}
	}
	return nil
}

// discoverDir scans one directory for skill subdirectories, skipping (with
// a WARN, per load-failures-must-not-abort-discovery) any candidate whose
// name fails ValidateDirName or whose SKILL.md/legacy files fail to parse.
// Checked for cancellation between entries, since a workspace directory
// full of skills is scanned synchronously and an overall Discover(ctx)
// call should be abortable without waiting out every remaining entry.
func discoverDir(ctx context.Context, dir string, source Source) []*Skill {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var found []*Skill
	for _, entry := range entries {
		if ctx.Err() != nil {
			return found
		}
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if err := ValidateDirName(name); err != nil {
			slog.Warn("skills.discovery.rejected", "dir", name, "reason", err.Error())
			continue
		}

		skillDir := filepath.Join(dir, name)
		skillFile := filepath.Join(skillDir, SkillFilename)

		var skill *Skill
		if _, statErr := os.Stat(skillFile); statErr == nil {
			skill, err = ParseSkillFile(skillFile)
		} else {
			skill, err = ParseLegacySkill(skillDir)
		}
		if err != nil {
			slog.Warn("skills.discovery.parse_failed", "dir", skillDir, "error", err.Error())
			continue
		}

		skill.Source = source
		found = append(found, skill)
	}
	return found
}

// DiscoverOptions configures the three-tier discovery pass.
type DiscoverOptions struct {
	BuiltinDir string
	UserDir    string // defaults to ~/.clawft/skills when empty and expandable
	WorkspaceDir string // workspace .clawft; loaded only if TrustProjectSkills

	TrustProjectSkills bool
}

// Discover scans builtin, user, and (if trusted) workspace directories, in
// increasing priority order, and returns the merged skill set: a
// higher-tier skill overwrites a same-name lower-tier one. ctx is checked
// before each tier and between each directory entry within a tier, so a
// caller can cancel a discovery pass over a slow filesystem (network
// home directory, large workspace) without waiting for it to finish.
func Discover(ctx context.Context, opts DiscoverOptions) []*Skill {
	byName := make(map[string]*Skill)

	apply := func(skills []*Skill, src Source) {
		prio := sourcePriority[src]
		for _, s := range skills {
			existing, ok := byName[s.Name]
			if !ok || prio >= sourcePriority[existing.Source] {
				byName[s.Name] = s
			}
		}
	}

	if ctx.Err() == nil && opts.BuiltinDir != "" {
		apply(discoverDir(ctx, opts.BuiltinDir, SourceBuiltin), SourceBuiltin)
	}

	userDir := opts.UserDir
	if userDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			userDir = filepath.Join(home, ".clawft", "skills")
		}
	}
	if ctx.Err() == nil && userDir != "" {
		apply(discoverDir(ctx, userDir, SourceUser), SourceUser)
	}

	if ctx.Err() == nil && opts.TrustProjectSkills && opts.WorkspaceDir != "" {
		apply(discoverDir(ctx, opts.WorkspaceDir, SourceWorkspace), SourceWorkspace)
	}

	out := make([]*Skill, 0, len(byName))
	for _, s := range byName {
		out = append(out, s)
	}
	return out
}
