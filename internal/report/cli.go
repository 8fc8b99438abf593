package report

import (
	"io"
)

// ShowHelp prints usage information for the overview tool.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `Armory Overview Tool
====================

Fetches character overviews from a running armory server and prints them
grouped by role.

Usage:
  go run ./cmd/overview [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -team string
        Team name from the server roster
  -characters string
        Comma separated realm/name pairs, e.g. "Kazzak/Foo,Argent Dawn/Bar"
  -region string
        Region code (default: server default)
  -timeout duration
        HTTP request timeout (default 90s)
  -output string
        Also write the JSON result to this file
  -verbose
        Print failure messages
  -help
        Show this help message

Examples:
  go run ./cmd/overview -team main
  go run ./cmd/overview -characters "Kazzak/Foo,Draenor/Bar" -region eu -output report.json
`)
}
