package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/fieldmarshal/brigade/pkg/models"
)

const (
	// metaDir is the directory inside each workspace holding brigade
	// bookkeeping files.
	metaDir = ".brigade"
	// bundleFile is the agent context bundle written at spawn time.
	bundleFile = "agent.yaml"
	// failureMarkerFile records why a workspace was left behind after a
	// failed validation or integration.
	failureMarkerFile = "FAILED"
)

// Bundle is the context dropped into a fresh workspace for whoever picks
// up the work. The checklist mirrors the spec's validation criteria and
// workers tick entries as they finish; brigade reads it back when
// monitoring and validating.
type Bundle struct {
	// Agent is the full spec this workspace was spawned for.
	Agent models.AgentSpec `yaml:"agent"`
	// Checklist holds one entry per validation criterion.
	Checklist []ChecklistEntry `yaml:"checklist"`
	// Files lists the paths the worker is expected to touch.
	Files BundleFiles `yaml:"files"`
	// WrittenAt records when the bundle was written.
	WrittenAt time.Time `yaml:"written_at"`
}

// ChecklistEntry is one tickable validation criterion.
type ChecklistEntry struct {
	// Criterion is the requirement text, verbatim from the agent spec.
	Criterion string `yaml:"criterion"`
	// Done marks the criterion as satisfied.
	Done bool `yaml:"done"`
}

// BundleFiles splits the expected file touches by kind.
type BundleFiles struct {
	// Create lists paths the worker should create.
	Create []string `yaml:"create,omitempty"`
	// Modify lists paths the worker should modify.
	Modify []string `yaml:"modify,omitempty"`
}

// NewBundle builds the spawn-time bundle for an agent spec with every
// checklist entry unticked.
func NewBundle(spec *models.AgentSpec) *Bundle {
	b := &Bundle{
		Agent: *spec.Clone(),
		Files: BundleFiles{
			Create: append([]string(nil), spec.FilesToCreate...),
			Modify: append([]string(nil), spec.FilesToModify...),
		},
		WrittenAt: time.Now().UTC(),
	}
	for _, criterion := range spec.ValidationCriteria {
		b.Checklist = append(b.Checklist, ChecklistEntry{Criterion: criterion})
	}
	return b
}

// TickedCount returns how many checklist entries are done.
func (b *Bundle) TickedCount() int {
	n := 0
	for _, entry := range b.Checklist {
		if entry.Done {
			n++
		}
	}
	return n
}

// UnmetCriteria returns the criteria still unticked, in checklist order.
func (b *Bundle) UnmetCriteria() []string {
	var unmet []string
	for _, entry := range b.Checklist {
		if !entry.Done {
			unmet = append(unmet, entry.Criterion)
		}
	}
	return unmet
}

// Complete reports whether every checklist entry is ticked.
func (b *Bundle) Complete() bool {
	return len(b.UnmetCriteria()) == 0
}

// BundlePath returns where the bundle lives inside a workspace.
func BundlePath(dir string) string {
	return filepath.Join(dir, metaDir, bundleFile)
}

// WriteBundle serializes the agent's spawn-time bundle into the
// workspace.
func WriteBundle(dir string, spec *models.AgentSpec) error {
	return SaveBundle(dir, NewBundle(spec))
}

// SaveBundle writes a bundle back to the workspace, preserving checklist
// ticks. Workers and tooling use this to update progress.
func SaveBundle(dir string, b *Bundle) error {
	data, err := yaml.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal agent bundle: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, metaDir), 0755); err != nil {
		return fmt.Errorf("create bundle directory: %w", err)
	}
	if err := os.WriteFile(BundlePath(dir), data, 0644); err != nil {
		return fmt.Errorf("write agent bundle: %w", err)
	}
	return nil
}

// ReadBundle loads the bundle from a workspace. A missing bundle is
// reported as an error wrapping os.ErrNotExist.
func ReadBundle(dir string) (*Bundle, error) {
	data, err := os.ReadFile(BundlePath(dir))
	if err != nil {
		return nil, fmt.Errorf("read agent bundle: %w", err)
	}
	var b Bundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse agent bundle: %w", err)
	}
	return &b, nil
}

// WriteFailureMarker records why a workspace was kept after a failure so
// a human can diagnose it later. Overwrites any prior marker.
func WriteFailureMarker(dir, reason string) error {
	if err := os.MkdirAll(filepath.Join(dir, metaDir), 0755); err != nil {
		return fmt.Errorf("create marker directory: %w", err)
	}
	content := fmt.Sprintf("failed at %s\n%s\n", time.Now().UTC().Format(time.RFC3339), reason)
	if err := os.WriteFile(filepath.Join(dir, metaDir, failureMarkerFile), []byte(content), 0644); err != nil {
		return fmt.Errorf("write failure marker: %w", err)
	}
	return nil
}

// FailureReason returns the recorded failure reason, if any.
func FailureReason(dir string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(dir, metaDir, failureMarkerFile))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}
