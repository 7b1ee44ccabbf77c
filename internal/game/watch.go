package game

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 100 * time.Millisecond

// FileWatcher reports changes to layout, config and script files. Events
// carries the changed path, debounced per file.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	files   map[string]bool // cleaned file paths of interest
	dirs    map[string]bool // watched directories whose run files all count
	Events  chan string
	Errors  chan error
	closeCh chan struct{}
	once    sync.Once
}

// NewFileWatcher watches the given files or directories. For files the
// parent directory is watched so editors that replace files on save are still
// seen. For directories every .yaml, .yml and .tengo file counts.
func NewFileWatcher(files ...string) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}

	fw := &FileWatcher{
		watcher: w,
		files:   make(map[string]bool),
		dirs:    make(map[string]bool),
		Events:  make(chan string, 16),
		Errors:  make(chan error, 1),
		closeCh: make(chan struct{}),
	}
	dirs := make(map[string]bool)
	for _, f := range files {
		if f == "" {
			continue
		}
		clean := filepath.Clean(f)
		if info, err := os.Stat(clean); err == nil && info.IsDir() {
			fw.dirs[clean] = true
			dirs[clean] = true
			continue
		}
		fw.files[clean] = true
		dirs[filepath.Dir(clean)] = true
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	go fw.run()
	return fw, nil
}

// Close stops the watcher and closes both channels.
func (fw *FileWatcher) Close() error {
	var err error
	fw.once.Do(func() {
		close(fw.closeCh)
		err = fw.watcher.Close()
	})
	return err
}

func (fw *FileWatcher) run() {
	defer close(fw.Events)
	defer close(fw.Errors)
	last := make(map[string]time.Time)
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			name := filepath.Clean(event.Name)
			if !fw.interesting(name) {
				continue
			}
			now := time.Now()
			if t, ok := last[name]; ok && now.Sub(t) < watchDebounce {
				continue
			}
			last[name] = now
			select {
			case fw.Events <- name:
			case <-fw.closeCh:
				return
			}
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			select {
			case fw.Errors <- err:
			default:
			}
		case <-fw.closeCh:
			return
		}
	}
}

func (fw *FileWatcher) interesting(path string) bool {
	if fw.files[path] {
		return true
	}
	return fw.dirs[filepath.Dir(path)] && isRunFile(path)
}

func isRunFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".tengo":
		return true
	}
	return false
}
