package domain

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	cardTypePattern   = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)
	cardIDPattern     = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)
	branchPattern     = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,99}$`)
	fileNamePattern   = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)
	identifierPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]{0,63}$`)
)

// Timeout bounds accepted from callers.
const (
	MinTimeout = time.Second
	MaxTimeout = 30 * time.Minute
)

// ValidateCardType checks a variant identifier against the allow-list pattern.
func ValidateCardType(cardType string) error {
	if !cardTypePattern.MatchString(cardType) {
		return ErrInvalidInput("cardType", "must match "+cardTypePattern.String())
	}
	return nil
}

// ValidateCardID checks a card id. Ids sourced from a live system must be
// UUIDs; configured ids only need to pass the allow-list.
func ValidateCardID(cardID string, requireUUID bool) error {
	if requireUUID {
		if _, err := uuid.Parse(cardID); err != nil || strings.Count(cardID, "-") != 4 {
			return ErrInvalidInput("cardId", "must be a UUID")
		}
		return nil
	}
	if !cardIDPattern.MatchString(cardID) {
		return ErrInvalidInput("cardId", "must match "+cardIDPattern.String())
	}
	return nil
}

// ValidateBranch checks a branch/environment name used to derive a host.
func ValidateBranch(branch string) error {
	if !branchPattern.MatchString(branch) || strings.Contains(branch, "..") {
		return ErrInvalidInput("branch", "must match "+branchPattern.String())
	}
	return nil
}

// ValidateTestType checks a single test type name.
func ValidateTestType(name string) (TestType, error) {
	tt := TestType(strings.TrimSpace(name))
	if !tt.Valid() {
		return "", ErrInvalidInput("testType", "unknown test type "+name)
	}
	return tt, nil
}

// ParseTestTypes validates and de-duplicates a list of test type names,
// keeping caller order.
func ParseTestTypes(names []string) ([]TestType, error) {
	if len(names) == 0 {
		return nil, ErrInvalidInput("testTypes", "must not be empty")
	}
	seen := make(map[TestType]bool)
	out := make([]TestType, 0, len(names))
	for _, n := range names {
		tt, err := ValidateTestType(n)
		if err != nil {
			return nil, err
		}
		if seen[tt] {
			continue
		}
		seen[tt] = true
		out = append(out, tt)
	}
	return out, nil
}

// ValidateTimeout checks a caller-supplied wait bound.
func ValidateTimeout(field string, d time.Duration) error {
	if d < MinTimeout || d > MaxTimeout {
		return ErrInvalidInput(field, "must be between "+MinTimeout.String()+" and "+MaxTimeout.String())
	}
	return nil
}

// ValidateFileName checks a bare file name: no separators, no traversal.
func ValidateFileName(name string) error {
	if !fileNamePattern.MatchString(name) || strings.Contains(name, "..") {
		return ErrInvalidInput("fileName", "must match "+fileNamePattern.String())
	}
	return nil
}

// SafeJoin joins elem onto root and fails if the result escapes root.
func SafeJoin(root string, elem ...string) (string, error) {
	cleanRoot := filepath.Clean(root)
	joined := filepath.Join(append([]string{cleanRoot}, elem...)...)
	rel, err := filepath.Rel(cleanRoot, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrPathTraversal(filepath.Join(elem...))
	}
	return joined, nil
}
