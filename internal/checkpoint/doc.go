// Package checkpoint persists the progress context of multi-step runs
// between CLI invocations.
//
// Each run is stored as one JSON file named after its ULID run ID, so a
// directory listing is ordered by creation time. Writes go through a
// temporary file and a rename so an interrupted save never leaves a
// truncated checkpoint behind.
package checkpoint
