package deployment

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	apierrors "github.com/edgecore/edgeagentd/internal/errors"
	"github.com/edgecore/edgeagentd/pkg/logger"
)

// Watcher watches the LOCAL deployment drop directory and the recipe
// directory for hot updates, pushing a LOCAL deployment onto the queue
// for every recipe file that appears or changes.
type Watcher struct {
	fsw   *fsnotify.Watcher
	queue *Queue
	log   logger.Logger
}

// NewWatcher creates a Watcher over the given directories (typically
// <rootPath>/deployments/local and <rootPath>/packages/recipes).
func NewWatcher(queue *Queue, log logger.Logger, dirs ...string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, apierrors.WrapKind(err, apierrors.ErrFailure, "create filesystem watcher")
	}
	for _, dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return nil, apierrors.WrapKind(err, apierrors.ErrFailure, "watch %s", dir)
		}
	}
	return &Watcher{fsw: fsw, queue: queue, log: log}, nil
}

// Run blocks, translating filesystem events into queue offers until ctx
// is cancelled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fsw.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.log != nil {
				w.log.Warn("deployment watcher error", logger.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	if filepath.Ext(event.Name) != ".yaml" && filepath.Ext(event.Name) != ".yml" && filepath.Ext(event.Name) != ".json" {
		return
	}

	d := Deployment{
		ID:        uuid.NewString(),
		Type:      TypeLocal,
		Stage:     StageDefault,
		RecipeDir: filepath.Dir(event.Name),
	}
	if w.queue.Offer(d) && w.log != nil {
		w.log.Info("queued local deployment", logger.String("path", event.Name), logger.String("deploymentId", d.ID))
	}
}
