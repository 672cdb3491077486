// Package memory implements the on-disk memory primitive format described
// in §3 and §6: decisions, learnings, and summaries, each a Markdown file
// with a YAML frontmatter header, named `{YYYYMMDD}-{slug}.md`.
package memory

import (
	"time"
)

// Kind distinguishes the three memory primitive types.
type Kind string

const (
	KindDecision Kind = "decision"
	KindLearning Kind = "learning"
	KindSummary  Kind = "summary"
)

// LearningKind enumerates the fixed vocabulary for a learning's kind field
// (§3).
type LearningKind string

const (
	LearningInsight    LearningKind = "insight"
	LearningProcedure  LearningKind = "procedure"
	LearningFriction   LearningKind = "friction"
	LearningPitfall    LearningKind = "pitfall"
	LearningPreference LearningKind = "preference"
)

// Frontmatter is the YAML header shared by all three kinds; fields not
// applicable to a given kind are left zero and omitted on marshal.
type Frontmatter struct {
	ID         string   `yaml:"id"`
	Title      string   `yaml:"title"`
	Created    string   `yaml:"created"`
	Updated    string   `yaml:"updated,omitempty"`
	Source     string   `yaml:"source"`
	Confidence float64  `yaml:"confidence,omitempty"`
	Tags       []string `yaml:"tags,omitempty"`

	// Learning-only.
	LearningKind LearningKind `yaml:"kind,omitempty"`

	// Summary-only.
	Description  string `yaml:"description,omitempty"`
	Date         string `yaml:"date,omitempty"`
	Time         string `yaml:"time,omitempty"`
	CodingAgent  string `yaml:"coding_agent,omitempty"`
	RawTracePath string `yaml:"raw_trace_path,omitempty"`
	RunID        string `yaml:"run_id,omitempty"`
	RepoName     string `yaml:"repo_name,omitempty"`
}

// Primitive is a fully parsed memory file: its frontmatter plus the
// Markdown body below the fence, and the kind/path it was loaded from (or
// is destined for).
type Primitive struct {
	Kind        Kind
	Path        string
	Frontmatter Frontmatter
	Body        string
}

// Filename derives the canonical `{YYYYMMDD}-{slug}.md` name for a
// primitive, where the date comes from the originating run id's embedded
// timestamp (passed in as created) and slug is a URL-safe form of title
// (§3 invariant).
func Filename(created time.Time, title string) string {
	return created.UTC().Format("20060102") + "-" + Slugify(title) + ".md"
}

// ID returns the filename stem, which doubles as the memory's access-
// tracker id (§4.7).
func ID(filename string) string {
	name := filename
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[:i]
		}
	}
	return name
}
