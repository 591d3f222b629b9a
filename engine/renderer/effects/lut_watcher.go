package effects

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// LutLibrary holds the loaded LUTs by name: the built-in presets plus any
// .cube files from the watched directory. Changed files reload in place so
// a running show picks up regraded LUTs without restarting.
type LutLibrary struct {
	mu   sync.RWMutex
	luts map[string]*Lut3D

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewLutLibrary creates a library pre-populated with the preset catalog.
func NewLutLibrary() *LutLibrary {
	lib := &LutLibrary{luts: make(map[string]*Lut3D)}
	for _, preset := range Presets() {
		lut := PresetLut(preset, LutSize32)
		lib.luts[lut.Name] = lut
	}
	return lib
}

// Get returns the LUT with the given name, or nil.
func (lib *LutLibrary) Get(name string) *Lut3D {
	lib.mu.RLock()
	defer lib.mu.RUnlock()
	return lib.luts[name]
}

// Names returns the loaded LUT names.
func (lib *LutLibrary) Names() []string {
	lib.mu.RLock()
	defer lib.mu.RUnlock()
	names := make([]string, 0, len(lib.luts))
	for name := range lib.luts {
		names = append(names, name)
	}
	return names
}

// Add registers a LUT, replacing any previous one of the same name.
func (lib *LutLibrary) Add(lut *Lut3D) {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	lib.luts[lut.Name] = lut
}

// LoadDirectory loads every .cube file in dir.
func (lib *LutLibrary) LoadDirectory(dir string) error {
	matches, err := filepath.Glob(filepath.Join(dir, "*.cube"))
	if err != nil {
		return err
	}
	for _, path := range matches {
		lut, err := LoadCubeFile(path)
		if err != nil {
			log.Printf("effects: skipping LUT %s: %v", path, err)
			continue
		}
		lib.Add(lut)
	}
	return nil
}

// Watch loads dir and reloads .cube files as they change on disk. Call
// Close to stop watching.
//
// Parameters:
//   - dir: the LUT directory
//
// Returns:
//   - error: watcher setup failure
func (lib *LutLibrary) Watch(dir string) error {
	if err := lib.LoadDirectory(dir); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create LUT watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}

	lib.watcher = watcher
	lib.done = make(chan struct{})

	go func() {
		for {
			select {
			case <-lib.done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !strings.EqualFold(filepath.Ext(event.Name), ".cube") {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					lut, err := LoadCubeFile(event.Name)
					if err != nil {
						log.Printf("effects: reload of %s failed: %v", event.Name, err)
						continue
					}
					lib.Add(lut)
					log.Printf("effects: reloaded LUT %q", lut.Name)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("effects: LUT watcher error: %v", err)
			}
		}
	}()

	log.Printf("effects: watching %s for LUT changes", dir)
	return nil
}

// Close stops the directory watcher, if any.
func (lib *LutLibrary) Close() {
	if lib.watcher != nil {
		close(lib.done)
		lib.watcher.Close()
		lib.watcher = nil
	}
}
