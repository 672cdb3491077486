package config

import "os"

// ExpandEnv expands ${VAR} and $VAR references in raw config bytes using
// the standard shell-style syntax, matching the teacher's
// pkg/config/envexpand.go. Missing variables expand to the empty string;
// API keys themselves are never read from this path (§6 — they come only
// from process environment variables at the point of use), this helper is
// for other templated fields like repo URLs or tokens-by-reference.
func ExpandEnv(data []byte) []byte {
	return []byte(os.Expand(string(data), os.Getenv))
}
