package stickers

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
	"k8s.io/klog/v2"

	"github.com/menta2k/photo-redactor/internal/utils"
)

// Watch rebuilds the registry whenever a file in the asset or custom dir is
// written, created, renamed or removed, then calls onChange with the new
// list. The watcher is armed when Watch returns and stops when ctx is done.
func (r *Registry) Watch(ctx context.Context, onChange func([]Sticker)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("new watcher: %w", err)
	}

	added := 0
	for _, dir := range []string{r.config.AssetDir, r.config.CustomDir} {
		if dir == "" || !utils.DirExists(dir) {
			continue
		}
		if err := w.Add(dir); err != nil {
			w.Close()
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		added++
	}
	if added == 0 {
		w.Close()
		return fmt.Errorf("no sticker directory to watch")
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				klog.V(2).Infof("sticker dir event: %s", event)
				if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove)) {
					continue
				}
				if err := r.Build(); err != nil {
					klog.Errorf("sticker rebuild failed: %v", err)
					continue
				}
				if onChange != nil {
					onChange(r.List())
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				klog.Warningf("sticker watcher: %v", err)
			}
		}
	}()
	return nil
}
