// Package policy supplies the severity policy text the analysis step grounds
// its judgments in.
package policy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"labtriage/internal/services"
)

// Source returns the current policy text.
type Source interface {
	Read(ctx context.Context) (string, error)
}

// FileSource reads the policy file on every call so edits take effect on the
// next analysis without a restart.
type FileSource struct {
	Path string
}

// NewFileSource returns a Source backed by path.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: strings.TrimSpace(path)}
}

// Read loads the policy text. Missing, empty, or non UTF-8 files are
// configuration errors.
func (s *FileSource) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s == nil || s.Path == "" {
		return "", services.Wrap(services.ErrConfiguration, "policy", "read", "policy file not configured", nil)
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", services.Wrap(services.ErrConfiguration, "policy", "read", fmt.Sprintf("policy file %s does not exist", s.Path), err)
		}
		return "", services.Wrap(services.ErrConfiguration, "policy", "read", "policy file unreadable", err)
	}
	if !utf8.Valid(data) {
		return "", services.Wrap(services.ErrConfiguration, "policy", "read", fmt.Sprintf("policy file %s is not valid UTF-8", s.Path), nil)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", services.Wrap(services.ErrConfiguration, "policy", "read", fmt.Sprintf("policy file %s is empty", s.Path), nil)
	}
	return text, nil
}

// StaticSource serves fixed text.
type StaticSource string

// Read returns the fixed text.
func (s StaticSource) Read(context.Context) (string, error) {
	text := strings.TrimSpace(string(s))
	if text == "" {
		return "", services.Wrap(services.ErrConfiguration, "policy", "read", "policy text is empty", nil)
	}
	return text, nil
}

// ContainsCitation reports whether citation appears verbatim in policy text,
// ignoring surrounding whitespace and runs of internal whitespace.
func ContainsCitation(policyText, citation string) bool {
	needle := collapseSpace(citation)
	if needle == "" {
		return false
	}
	return strings.Contains(collapseSpace(policyText), needle)
}

func collapseSpace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
