package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/testforge/cardforge/internal/domain"
)

// Mirror receives a copy of every written artifact
type Mirror interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// File is one artifact path and its content
type File struct {
	Kind     domain.ArtifactKind `json:"kind"`
	TestType domain.TestType     `json:"testType,omitempty"`
	Path     string              `json:"path"`
	Content  string              `json:"-"`
}

// Store writes and reads artifact sets
type Store struct {
	layout *Layout
	mirror Mirror
	logger *zap.Logger
	now    func() time.Time
}

// NewStore creates a store. mirror may be nil.
func NewStore(layout *Layout, mirror Mirror, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{layout: layout, mirror: mirror, logger: logger, now: time.Now}
}

// Layout returns the store's layout
func (s *Store) Layout() *Layout {
	return s.layout
}

// Files resolves the path of every artifact in set, page object first,
// then the spec, then tests in configuration order.
func (s *Store) Files(set *domain.GeneratedArtifactSet) ([]File, error) {
	if set == nil || set.Config == nil {
		return nil, domain.ErrInvalidInput("artifacts", "are required")
	}
	cardType := set.Config.CardType

	page, err := s.layout.PageObjectPath(cardType)
	if err != nil {
		return nil, err
	}
	spec, err := s.layout.SpecPath(cardType)
	if err != nil {
		return nil, err
	}
	files := []File{
		{Kind: domain.ArtifactPageObject, Path: page, Content: set.PageObject},
		{Kind: domain.ArtifactSpec, Path: spec, Content: set.Spec},
	}
	for _, tt := range set.TestTypes() {
		p, err := s.layout.TestPath(cardType, tt)
		if err != nil {
			return nil, err
		}
		files = append(files, File{Kind: domain.ArtifactTest, TestType: tt, Path: p, Content: set.Tests[tt]})
	}
	return files, nil
}

// WriteSet writes every artifact of set and returns the written paths.
// Files written before a failure stay on disk.
func (s *Store) WriteSet(ctx context.Context, set *domain.GeneratedArtifactSet) ([]string, error) {
	files, err := s.Files(set)
	if err != nil {
		return nil, err
	}
	written := make([]string, 0, len(files))
	for _, f := range files {
		if err := s.WriteFile(ctx, f.Path, f.Content); err != nil {
			return written, err
		}
		written = append(written, f.Path)
	}
	return written, nil
}

// WriteFile replaces path with content, creating parent directories.
func (s *Store) WriteFile(ctx context.Context, path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	s.logger.Debug("artifact written", zap.String("path", path), zap.Int("bytes", len(content)))

	if s.mirror != nil {
		key := s.layout.Rel(path)
		if err := s.mirror.Put(ctx, key, []byte(content), "text/javascript"); err != nil {
			s.logger.Warn("artifact mirror failed", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

// LoadSet reads the artifacts of cfg back from disk. Missing test files
// are skipped; a missing page object is NotFound.
func (s *Store) LoadSet(cfg *domain.CardConfiguration) (*domain.GeneratedArtifactSet, error) {
	if cfg == nil {
		return nil, domain.ErrInvalidInput("configuration", "is required")
	}
	set := &domain.GeneratedArtifactSet{Config: cfg, Tests: make(map[domain.TestType]string)}

	page, err := s.layout.PageObjectPath(cfg.CardType)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(page)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound("page object", page)
		}
		return nil, fmt.Errorf("reading %s: %w", page, err)
	}
	set.PageObject = string(data)

	spec, err := s.layout.SpecPath(cfg.CardType)
	if err != nil {
		return nil, err
	}
	if data, err := os.ReadFile(spec); err == nil {
		set.Spec = string(data)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading %s: %w", spec, err)
	}

	for _, tt := range cfg.TestTypes {
		p, err := s.layout.TestPath(cfg.CardType, tt)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		set.Tests[tt] = string(data)
	}
	return set, nil
}

// Backup copies path next to itself with a timestamp suffix. Backups are
// never overwritten; a collision gets a counter.
func (s *Store) Backup(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s for backup: %w", path, err)
	}
	stamp := s.now().UTC().Format("20060102T150405.000")
	target := fmt.Sprintf("%s.backup-%s", path, stamp)
	for i := 1; ; i++ {
		f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			target = fmt.Sprintf("%s.backup-%s-%d", path, stamp, i)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("creating backup of %s: %w", path, err)
		}
		_, werr := f.Write(data)
		cerr := f.Close()
		if werr != nil {
			return "", fmt.Errorf("writing backup of %s: %w", path, werr)
		}
		if cerr != nil {
			return "", fmt.Errorf("closing backup of %s: %w", path, cerr)
		}
		return target, nil
	}
}

// Backups tracks the files backed up during one run so each gets at most
// one backup, taken before its first change.
type Backups struct {
	store *Store
	done  map[string]bool
	Paths []string
}

// NewBackups starts backup tracking for one run
func (s *Store) NewBackups() *Backups {
	return &Backups{store: s, done: make(map[string]bool)}
}

// Ensure backs up path unless it was already backed up in this run or
// does not exist yet.
func (b *Backups) Ensure(path string) error {
	if b.done[path] {
		return nil
	}
	b.done[path] = true
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	target, err := b.store.Backup(path)
	if err != nil {
		return err
	}
	b.Paths = append(b.Paths, target)
	return nil
}
