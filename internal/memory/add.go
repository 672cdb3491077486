package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// AddOptions carries the fields a manually-authored decision or learning
// can set (§6 "memory add --title T --body B [--primitive ...] [--kind K]
// [--confidence F] [--tags a,b]").
type AddOptions struct {
	Primitive  Kind
	Title      string
	Body       string
	Learning   LearningKind
	Confidence float64
	Tags       []string
	Source     string
}

// Add writes a new decision or learning file directly under root (the
// memory root), bypassing the sync/maintain pipelines entirely — the one
// path by which a human, not the lead agent, adds a memory primitive.
func Add(root string, opts AddOptions, now time.Time) (*Primitive, error) {
	if opts.Title == "" {
		return nil, fmt.Errorf("memory: add: title is required")
	}
	if opts.Primitive != KindDecision && opts.Primitive != KindLearning {
		return nil, fmt.Errorf("memory: add: primitive must be decision or learning, got %q", opts.Primitive)
	}

	if opts.Confidence == 0 {
		opts.Confidence = 1
	}
	if opts.Source == "" {
		opts.Source = "manual"
	}

	dir := filepath.Join(root, kindDirs[opts.Primitive])
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("memory: add: mkdir %s: %w", dir, err)
	}

	filename := Filename(now, opts.Title)
	path := filepath.Join(dir, filename)

	p := &Primitive{
		Kind: opts.Primitive,
		Path: path,
		Frontmatter: Frontmatter{
			ID:           ID(filename),
			Title:        opts.Title,
			Created:      now.UTC().Format(time.RFC3339),
			Source:       opts.Source,
			Confidence:   opts.Confidence,
			Tags:         opts.Tags,
			LearningKind: opts.Learning,
		},
		Body: opts.Body,
	}
	if err := Write(p); err != nil {
		return nil, err
	}
	return p, nil
}
