// Package storage persists generated artifacts into the project tree and
// optionally mirrors them to object storage.
package storage

import (
	"path/filepath"
	"strings"

	"github.com/testforge/cardforge/internal/domain"
)

// SurfaceResolver maps a card type to its surface directory
type SurfaceResolver interface {
	Surface(cardType string) string
}

// Layout maps card artifacts onto the on-disk tree:
//
//	{root}/{surface}/{cardType}/{cardType}.page.js
//	{root}/{surface}/{cardType}/specs/{cardType}.spec.js
//	{root}/{surface}/{cardType}/tests/{cardType}_{testType}.test.js
type Layout struct {
	root     string
	surfaces SurfaceResolver
}

// NewLayout roots the tree at projectRoot joined with subpath. The
// subpath must stay inside the project root.
func NewLayout(projectRoot, subpath string, surfaces SurfaceResolver) (*Layout, error) {
	if strings.TrimSpace(projectRoot) == "" {
		return nil, domain.ErrInvalidInput("projectRoot", "is required")
	}
	if filepath.IsAbs(subpath) {
		return nil, domain.ErrPathTraversal(subpath)
	}
	root, err := domain.SafeJoin(projectRoot, subpath)
	if err != nil {
		return nil, err
	}
	return &Layout{root: root, surfaces: surfaces}, nil
}

// Root returns the artifact tree root
func (l *Layout) Root() string {
	return l.root
}

// CardDir returns the directory holding one card type's artifacts
func (l *Layout) CardDir(cardType string) (string, error) {
	if err := domain.ValidateCardType(cardType); err != nil {
		return "", err
	}
	surface := "common"
	if l.surfaces != nil {
		surface = l.surfaces.Surface(cardType)
	}
	if err := domain.ValidateFileName(surface); err != nil {
		return "", err
	}
	return domain.SafeJoin(l.root, surface, cardType)
}

// PageObjectPath returns the page object path for a card type
func (l *Layout) PageObjectPath(cardType string) (string, error) {
	dir, err := l.CardDir(cardType)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, domain.PageObjectFileName(cardType)), nil
}

// SpecPath returns the spec path for a card type
func (l *Layout) SpecPath(cardType string) (string, error) {
	dir, err := l.CardDir(cardType)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, domain.SpecsDir, domain.SpecFileName(cardType)), nil
}

// TestPath returns the test path for a card type and test type
func (l *Layout) TestPath(cardType string, tt domain.TestType) (string, error) {
	if _, err := domain.ValidateTestType(string(tt)); err != nil {
		return "", err
	}
	dir, err := l.CardDir(cardType)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, domain.TestsDir, domain.TestFileName(cardType, tt)), nil
}

// Rel returns path relative to the tree root, slash separated. It is the
// object key used by mirrors.
func (l *Layout) Rel(path string) string {
	rel, err := filepath.Rel(l.root, path)
	if err != nil {
		return filepath.ToSlash(filepath.Base(path))
	}
	return filepath.ToSlash(rel)
}
