// File: editor/file.go
package editor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/lguibr/bazaar/market"
	"github.com/lguibr/bazaar/utils"
)

// ListingsFile is the YAML document a FileEditor reads.
type ListingsFile struct {
	Sellers []utils.SellerConfig `yaml:"sellers"`
}

// Report summarises one pass over the listings file.
type Report struct {
	Added    int
	Updated  int
	Rejected int
	Skipped  int
	Errors   []error
}

// FileEditor applies the listings of a YAML file to seller catalogues and
// re-applies them whenever the file changes on disk. Entries whose price has
// not changed since the last pass are skipped.
type FileEditor struct {
	path    string
	resolve Resolver
	log     *logrus.Entry

	mu      sync.Mutex
	applied map[string]map[string]int // seller -> title -> price last applied
}

// NewFileEditor creates an editor for the listings file at path.
func NewFileEditor(path string, resolve Resolver, logger *logrus.Logger) *FileEditor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &FileEditor{
		path:    path,
		resolve: resolve,
		log:     logger.WithFields(logrus.Fields{"component": "file-editor", "file": path}),
		applied: make(map[string]map[string]int),
	}
}

// Load parses the listings file.
func (f *FileEditor) Load() (ListingsFile, error) {
	var doc ListingsFile
	data, err := os.ReadFile(f.path)
	if err != nil {
		return doc, fmt.Errorf("read listings %s: %w", f.path, err)
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("parse listings %s: %w", f.path, err)
	}
	return doc, nil
}

// Apply reads the file and calls AddOrUpdate for every new or repriced
// entry. Entry errors are collected in the report; only an unreadable file
// fails the whole pass.
func (f *FileEditor) Apply() (Report, error) {
	var report Report
	doc, err := f.Load()
	if err != nil {
		return report, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, seller := range doc.Sellers {
		target, err := f.resolve(seller.Name)
		if err != nil {
			report.Errors = append(report.Errors, err)
			continue
		}
		seen := f.applied[seller.Name]
		if seen == nil {
			seen = make(map[string]int)
			f.applied[seller.Name] = seen
		}
		for _, l := range seller.Listings {
			if price, ok := seen[l.Title]; ok && price == l.Price {
				report.Skipped++
				continue
			}
			res, err := target.AddOrUpdate(l.Title, l.Price)
			if err != nil {
				report.Errors = append(report.Errors, fmt.Errorf("%s/%s: %w", seller.Name, l.Title, err))
				continue
			}
			seen[l.Title] = l.Price
			switch res {
			case market.Added:
				report.Added++
			case market.PriceUpdated:
				report.Updated++
			case market.RejectedAlreadySold:
				report.Rejected++
			}
		}
	}

	f.log.WithFields(logrus.Fields{
		"added":    report.Added,
		"updated":  report.Updated,
		"rejected": report.Rejected,
		"errors":   len(report.Errors),
	}).Info("Applied listings file")
	return report, nil
}

// Watch applies the file once and then after every write until ctx is
// done. The parent directory is watched so editors that save by renaming a
// temporary file are picked up too.
func (f *FileEditor) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch listings: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("watch listings: %w", err)
	}
	if _, err := f.Apply(); err != nil {
		f.log.WithError(err).Warn("Initial listings pass failed")
	}

	target := filepath.Clean(f.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if _, err := f.Apply(); err != nil {
				if errors.Is(err, os.ErrNotExist) {
					continue
				}
				f.log.WithError(err).Warn("Listings pass failed")
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			f.log.WithError(err).Error("Watcher error")
		}
	}
}
