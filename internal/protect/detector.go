package protect

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/fieldmarshal/brigade/pkg/models"
)

// Warning flags one declared file inside a protected area.
type Warning struct {
	AgentID string
	Path    string
	Reason  string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s (%s)", w.AgentID, w.Path, w.Reason)
}

// Detector matches paths against protected-area rules: glob patterns,
// path keywords, and file extensions. Warnings are advisory; nothing
// here stops a plan.
type Detector struct {
	patterns  []string
	keywords  []string
	fileTypes []string
}

// New returns a detector with the built-in rules plus extra glob
// patterns, usually the protected_paths config key.
func New(extraPatterns ...string) *Detector {
	patterns := make([]string, 0, len(DefaultPatterns)+len(extraPatterns))
	patterns = append(patterns, DefaultPatterns...)
	patterns = append(patterns, extraPatterns...)
	return &Detector{
		patterns:  patterns,
		keywords:  append([]string(nil), DefaultKeywords...),
		fileTypes: append([]string(nil), DefaultFileTypes...),
	}
}

// Check reports whether path falls inside a protected area and why.
func (d *Detector) Check(path string) (bool, string) {
	normalized := filepath.ToSlash(path)
	lower := strings.ToLower(normalized)

	for _, pattern := range d.patterns {
		if ok, err := doublestar.Match(pattern, normalized); err == nil && ok {
			return true, "matches protected pattern " + pattern
		}
	}
	for _, keyword := range d.keywords {
		if strings.Contains(lower, keyword) {
			return true, "path contains " + keyword
		}
	}
	ext := strings.ToLower(filepath.Ext(normalized))
	if ext != "" {
		for _, protectedExt := range d.fileTypes {
			if ext == protectedExt {
				return true, "sensitive file type " + protectedExt
			}
		}
	}
	return false, ""
}

// Scan checks every file declared by every spec in the plan, in plan
// order, and returns one warning per protected path.
func (d *Detector) Scan(plan *models.DeploymentPlan) []Warning {
	var warnings []Warning
	for _, spec := range plan.Agents {
		for _, path := range spec.FilesToCreate {
			warnings = d.appendWarning(warnings, spec.ID, path)
		}
		for _, path := range spec.FilesToModify {
			warnings = d.appendWarning(warnings, spec.ID, path)
		}
	}
	return warnings
}

func (d *Detector) appendWarning(warnings []Warning, agentID, path string) []Warning {
	ok, reason := d.Check(path)
	if !ok {
		return warnings
	}
	return append(warnings, Warning{AgentID: agentID, Path: path, Reason: reason})
}
