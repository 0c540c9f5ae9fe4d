/*
Copyright © 2024 the obs2ioda authors.
This file is part of obs2ioda.

obs2ioda is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

obs2ioda is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with obs2ioda.  If not, see <http://www.gnu.org/licenses/>.
*/

package obs2iodautil

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/NCAR/obs2ioda/ncio"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// settle is how long a file must go unmodified before it is converted.
var settle = 500 * time.Millisecond

// WatchResult is the outcome of converting one watched file.
type WatchResult struct {
	Input  string
	Report *ncio.Report
	Err    error
}

// watched reports whether the file called name should be converted.
func watched(name string, patterns []string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".nc", ".nc4":
	default:
		return false
	}
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if ok, _ := doublestar.PathMatch(p, name); ok {
			return true
		}
		if ok, _ := doublestar.Match(p, filepath.Base(name)); ok {
			return true
		}
	}
	return false
}

// Watch converts each netCDF file created or written in dir, once it has
// settled, until ctx is done. At most workers files are converted at
// once. If results is non-nil, the outcome of every conversion is sent
// to it.
func Watch(ctx context.Context, dir string, patterns []string, outputDir, schemaPath string, workers int, strict bool, results chan<- WatchResult) error {
	if a, b := filepath.Clean(dir), filepath.Clean(outputDir); a == b {
		return fmt.Errorf("obs2ioda: output directory must differ from watched directory %s", dir)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("obs2ioda: watching %s: %v", dir, err)
	}
	defer fsw.Close()
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("obs2ioda: watching %s: %v", dir, err)
	}
	if workers < 1 {
		workers = 1
	}
	c := &ncio.Converter{Library: newLibrary(ctx, schemaPath), Strict: strict}
	log := Log.WithFields(logrus.Fields{"dir": dir, "operation": "watch"})
	log.Info("obs2ioda: watching for files")

	var (
		mu     sync.Mutex
		timers = make(map[string]*time.Timer)
		ready  = make(chan string)
		sem    = make(chan struct{}, workers)
		wg     sync.WaitGroup
	)
	defer func() {
		mu.Lock()
		for _, t := range timers {
			t.Stop()
		}
		mu.Unlock()
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("obs2ioda: watcher error")
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) || !watched(ev.Name, patterns) {
				continue
			}
			name := ev.Name
			mu.Lock()
			if t, ok := timers[name]; ok {
				t.Reset(settle)
			} else {
				timers[name] = time.AfterFunc(settle, func() {
					select {
					case ready <- name:
					case <-ctx.Done():
					}
				})
			}
			mu.Unlock()
		case name := <-ready:
			mu.Lock()
			delete(timers, name)
			mu.Unlock()
			wg.Add(1)
			go func() {
				defer wg.Done()
				select {
				case sem <- struct{}{}:
				case <-ctx.Done():
					return
				}
				defer func() { <-sem }()
				r, err := convertFile(ctx, c, name, outputDir)
				if results != nil {
					select {
					case results <- WatchResult{Input: name, Report: r, Err: err}:
					case <-ctx.Done():
					}
				}
			}()
		}
	}
}
