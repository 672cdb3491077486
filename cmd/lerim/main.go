// Lerim CLI — indexes coding-agent sessions, extracts durable decisions
// and learnings, and serves them back as evidence for future sessions.
package main

import "os"

func main() {
	os.Exit(Execute())
}
