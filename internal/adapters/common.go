package adapters

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ParseTimestamp parses an ISO-8601 string or an int/float epoch seconds or
// milliseconds value (auto-detected by magnitude) into a UTC time.Time.
// Returns nil, false when the input is empty or cannot be parsed. Mirrors
// original_source/src/lerim/adapters/common.py's parse_timestamp.
func ParseTimestamp(value any) (*time.Time, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case string:
		if v == "" {
			return nil, false
		}
		s := strings.Replace(v, "Z", "+00:00", 1)
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05-07:00", "2006-01-02T15:04:05"} {
			if t, err := time.Parse(layout, s); err == nil {
				return ptr(t.UTC()), true
			}
		}
		return nil, false
	case float64:
		return epochToTime(v), true
	case int64:
		return epochToTime(float64(v)), true
	case int:
		return epochToTime(float64(v)), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, false
		}
		return epochToTime(f), true
	default:
		return nil, false
	}
}

func epochToTime(seconds float64) *time.Time {
	if math.Abs(seconds) > 1e10 {
		seconds /= 1000.0
	}
	t := time.Unix(0, int64(seconds*float64(time.Second))).UTC()
	return &t
}

func ptr[T any](v T) *T { return &v }

// LoadJSONLDictLines reads a JSONL file, silently skipping malformed lines
// and any line whose JSON value is not an object. Mirrors common.py's
// load_jsonl_dict_lines.
func LoadJSONLDictLines(path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var rows []map[string]any
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var payload map[string]any
		if err := json.Unmarshal([]byte(line), &payload); err != nil {
			continue
		}
		rows = append(rows, payload)
	}
	return rows, nil
}

// CountNonEmptyFiles counts files under root matching pattern (a filepath
// glob, e.g. "*.jsonl") that have non-zero size. Mirrors common.py's
// count_non_empty_files.
func CountNonEmptyFiles(root, pattern string) (int, error) {
	if _, err := os.Stat(root); err != nil {
		return 0, nil
	}
	count := 0
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		matched, merr := filepath.Match(pattern, d.Name())
		if merr != nil || !matched {
			return nil
		}
		info, serr := d.Info()
		if serr == nil && info.Size() > 0 {
			count++
		}
		return nil
	})
	return count, err
}

// InWindow reports whether value falls within the inclusive [start, end]
// bounds. A nil value passes only when both bounds are nil. Mirrors
// common.py's in_window.
func InWindow(value, start, end *time.Time) bool {
	if value == nil {
		return start == nil && end == nil
	}
	if start != nil && value.Before(*start) {
		return false
	}
	if end != nil && value.After(*end) {
		return false
	}
	return true
}

// ComputeFileHash returns the SHA-256 hex digest of a file's raw bytes.
// The file-backed adapters (claude, codex) use it for ContentHash (§4.2);
// the SQLite-backed adapters use ComputeCanonicalJSONLHash instead.
// Mirrors common.py's compute_file_hash.
func ComputeFileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return hashReader(f)
}

func hashReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ComputeCanonicalJSONLHash hashes a canonicalized export of rows: each row
// is re-serialized with sorted keys and no extraneous whitespace before
// hashing, so two independent exports of unchanged source data always
// agree. This resolves §9's open question in favor of "hash a canonicalized
// JSONL" (see DESIGN.md and SPEC_FULL.md §9). Used by adapters whose source
// is a SQLite database that must be exported to a JSONL cache file first
// (§4.2).
func ComputeCanonicalJSONLHash(rows []map[string]any) (string, error) {
	h := sha256.New()
	for _, row := range rows {
		line, err := canonicalJSON(row)
		if err != nil {
			return "", err
		}
		h.Write(line)
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// canonicalJSON serializes v with map keys sorted (encoding/json already
// sorts map[string]any keys) and no indentation, recursively normalizing
// nested maps so field order never affects the hash.
func canonicalJSON(v any) ([]byte, error) {
	normalized := normalizeForHash(v)
	return json.Marshal(normalized)
}

func normalizeForHash(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, vv := range val {
			out[k] = normalizeForHash(vv)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, vv := range val {
			out[i] = normalizeForHash(vv)
		}
		return out
	default:
		return val
	}
}

// FormatEpochOrISO renders a time.Time as RFC3339 in UTC, used when
// building SessionRecord.StartTime string forms for catalog storage.
func FormatEpochOrISO(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// ParseNumericString parses a decimal numeric string that may represent a
// unix timestamp, returning ok=false on any parse failure. Used by adapters
// that read timestamps out of CSV-like or text-protocol sources.
func ParseNumericString(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
