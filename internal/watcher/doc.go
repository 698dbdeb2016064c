// Package watcher provides real-time file system watching with automatic
// debouncing, used by the index manager to notice a committed index rename
// under the data root and swap its reader handle without a restart.
//
// The package implements a hybrid watching strategy:
//   - Primary: fsnotify for efficient event-based watching
//   - Fallback: Polling for environments where fsnotify fails (network mounts, Docker volumes)
//
// Events are debounced to coalesce rapid changes from a build's rename-heavy
// commit sequence.
//
// Usage:
//
//	opts := watcher.DefaultOptions()
//	w, err := watcher.NewHybridWatcher(opts)
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	// Start returns an initialization error at once; otherwise it blocks
//	// until ctx is cancelled or Stop is called.
//	go func() {
//	    if err := w.Start(ctx, "/path/to/project"); err != nil {
//	        log.Println(err)
//	    }
//	}()
//
//	for batch := range w.Events() {
//	    for _, event := range batch {
//	        switch event.Operation {
//	        case watcher.OpCreate:
//	            // Handle file creation
//	        case watcher.OpModify:
//	            // Handle file modification
//	        case watcher.OpDelete:
//	            // Handle file deletion
//	        }
//	    }
//	}
package watcher
