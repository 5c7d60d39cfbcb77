// Package version holds the release version stamped into the binary.
package version

// Current is the extractor release version, without a "v" prefix.
const Current = "0.1.0"
