package monitor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/fieldmarshal/brigade/internal/workspace"
	"github.com/fieldmarshal/brigade/pkg/models"
)

// Notify watches every live workspace's bundle and emits the agent ID
// whenever its checklist file changes. Dashboards use this to refresh
// between polls. The channel closes when ctx is cancelled.
func (m *Monitor) Notify(ctx context.Context, plan *models.DeploymentPlan) (<-chan string, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	agentByDir := make(map[string]string)
	for _, agent := range plan.Agents {
		path := workspace.PathFor(m.root, plan, agent.ID)
		dir := filepath.Dir(workspace.BundlePath(path))
		if _, statErr := os.Stat(dir); statErr != nil {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
		agentByDir[dir] = agent.ID
	}

	changed := make(chan string)
	go func() {
		defer close(changed)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				agentID, watched := agentByDir[filepath.Dir(event.Name)]
				if !watched {
					continue
				}
				select {
				case changed <- agentID:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				m.log.Warn().Err(err).Msg("workspace watch error")
			}
		}
	}()
	return changed, nil
}
