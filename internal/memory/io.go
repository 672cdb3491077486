package memory

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const fence = "---\n"

// ParseBytes parses raw memory-file content (the same fenced-YAML-plus-
// body shape Read expects) without touching the filesystem. It is the
// shared core of Read and of the write tool's in-memory normalization
// path, which validates content the LLM hands it before any file exists.
func ParseBytes(data []byte) (Frontmatter, string, error) {
	text := string(data)
	if !strings.HasPrefix(text, fence) {
		return Frontmatter{}, "", fmt.Errorf("missing opening frontmatter fence")
	}
	rest := text[len(fence):]
	end := strings.Index(rest, "\n"+fence)
	if end < 0 {
		return Frontmatter{}, "", fmt.Errorf("missing closing frontmatter fence")
	}
	yamlPart := rest[:end+1]
	body := strings.TrimPrefix(rest[end+1+len(fence):], "\n")

	var fm Frontmatter
	if err := yaml.Unmarshal([]byte(yamlPart), &fm); err != nil {
		return Frontmatter{}, "", fmt.Errorf("parse frontmatter: %w", err)
	}
	return fm, body, nil
}

// Read parses a memory file's frontmatter and body. The file must start
// with a `---` fence, YAML, a closing `---` fence, a blank line, then the
// Markdown body (§3 invariant).
func Read(kind Kind, path string) (*Primitive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("memory: read %s: %w", path, err)
	}

	fm, body, err := ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("memory: %s: %w", path, err)
	}

	return &Primitive{Kind: kind, Path: path, Frontmatter: fm, Body: body}, nil
}

// Render serializes a Primitive back into its on-disk form: fenced YAML
// frontmatter, a blank line, then the body verbatim.
func Render(p *Primitive) ([]byte, error) {
	yamlBytes, err := yaml.Marshal(p.Frontmatter)
	if err != nil {
		return nil, fmt.Errorf("memory: render frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(fence)
	buf.Write(yamlBytes)
	buf.WriteString(fence)
	buf.WriteString("\n")
	buf.WriteString(p.Body)
	return buf.Bytes(), nil
}

// Write atomically writes a Primitive to path: it renders the file to a
// sibling temp file, then renames over the destination, so a reader never
// observes a partial write (§3 invariant: "writes are atomic from the
// reader's viewpoint").
func Write(p *Primitive) error {
	data, err := Render(p)
	if err != nil {
		return err
	}
	tmp := p.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("memory: write temp %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, p.Path); err != nil {
		return fmt.Errorf("memory: rename %s -> %s: %w", tmp, p.Path, err)
	}
	return nil
}
