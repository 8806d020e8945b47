// Package pagination parses the paging and sorting flags of list commands
// and applies them to record queries.
//
// Two mutually exclusive modes are supported:
//   - offset-based: --limit and --offset
//   - page-based: --page and --page-size
package pagination
