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
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/NCAR/obs2ioda"
	"github.com/NCAR/obs2ioda/ncio"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/ctessum/requestcache"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// documents holds parsed schema documents by path so that concurrent
// conversions share them. The empty path is the built-in document.
var documents = requestcache.NewCache(func(ctx context.Context, request interface{}) (interface{}, error) {
	path := request.(string)
	if path == "" {
		return obs2ioda.DefaultDocument(), nil
	}
	return obs2ioda.LoadDocument(path)
}, runtime.GOMAXPROCS(-1), requestcache.Deduplicate(), requestcache.Memory(16))

// newSchema returns a schema with the legacy naming rules built from the
// document at path.
func newSchema(ctx context.Context, path string) (*obs2ioda.Schema, error) {
	req := documents.NewRequest(ctx, path, "schema_"+path)
	d, err := req.Result()
	if err != nil {
		return nil, err
	}
	s, err := obs2ioda.NewSchema(d.(*obs2ioda.Document), Log)
	if err != nil {
		return nil, err
	}
	s.AddLegacyRules()
	s.Metrics = metrics
	return s, nil
}

func loadSchema(path string) (*obs2ioda.Schema, error) {
	return newSchema(context.Background(), path)
}

// newLibrary returns a library whose files use the schema at schemaPath.
func newLibrary(ctx context.Context, schemaPath string) *ncio.Library {
	l := ncio.NewLibrary()
	l.Log = Log.WithField("run", uuid.New().String())
	l.Metrics = metrics
	l.NewSchema = func() (*obs2ioda.Schema, error) { return newSchema(ctx, schemaPath) }
	return l
}

// Expand returns the files matching any of the glob patterns, sorted and
// without duplicates. Directories are ignored.
func Expand(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, p := range patterns {
		matches, err := doublestar.FilepathGlob(p)
		if err != nil {
			return nil, fmt.Errorf("obs2ioda: input pattern %q: %w", p, err)
		}
		for _, m := range matches {
			if info, err := os.Stat(m); err != nil || info.IsDir() {
				continue
			}
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("obs2ioda: no input files match %v", patterns)
	}
	sort.Strings(files)
	return files, nil
}

// outputPath returns where the converted form of input is written.
func outputPath(outputDir, input string) (string, error) {
	out := filepath.Join(outputDir, filepath.Base(input))
	a, err := filepath.Abs(out)
	if err != nil {
		return "", err
	}
	b, err := filepath.Abs(input)
	if err != nil {
		return "", err
	}
	if a == b {
		return "", fmt.Errorf("obs2ioda: output for %s would overwrite the input", input)
	}
	return out, nil
}

// Convert converts the files matching the glob patterns into outputDir
// using the given number of concurrent workers. The schema document at
// schemaPath is used, or the built-in one if it is empty. A file that
// fails does not stop the others. The reports of the converted files are
// returned along with an error combining the failures.
func Convert(ctx context.Context, patterns []string, outputDir, schemaPath string, workers int, strict bool) ([]*ncio.Report, error) {
	files, err := Expand(patterns)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outputDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("obs2ioda: creating output directory: %v", err)
	}
	if workers < 1 {
		workers = 1
	}
	c := &ncio.Converter{Library: newLibrary(ctx, schemaPath), Strict: strict}

	type result struct {
		r   *ncio.Report
		err error
	}
	results := make([]result, len(files))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i].r, results[i].err = convertFile(ctx, c, files[i], outputDir)
			}
		}()
	}
	for i := range files {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	var (
		reports []*ncio.Report
		errs    obs2ioda.Errors
	)
	for i, res := range results {
		if res.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", files[i], res.err))
			continue
		}
		reports = append(reports, res.r)
	}
	return reports, errs.Err()
}

// convertFile converts one file, logging the outcome.
func convertFile(ctx context.Context, c *ncio.Converter, input, outputDir string) (*ncio.Report, error) {
	log := Log.WithFields(logrus.Fields{"file": input, "operation": "convert"})
	out, err := outputPath(outputDir, input)
	if err != nil {
		log.Error(err)
		return nil, err
	}
	r, err := c.Convert(ctx, input, out)
	if err != nil {
		log.Error(err)
		return nil, err
	}
	for k, names := range r.Created {
		log.WithFields(logrus.Fields{"kind": k, "names": names}).Warn("obs2ioda: names not declared in schema")
	}
	for _, s := range r.Skipped {
		log.WithField("variable", s).Warn("obs2ioda: variable not converted")
	}
	return r, nil
}
