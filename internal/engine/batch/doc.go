// Package batch applies an operation to a large record source in bounded,
// resumable steps.
//
// A run is driven by an external scheduler that owns a Progress value and
// calls Step (or PopulateQueue followed by Process) until Progress.Done. Key
// features:
//   - Session state resolved once per run by Processor.Initialize
//   - Finite descriptor lists or live queries as the record source
//   - Total item count computed once and cached in the progress context
//   - Translation and revision aware entity resolution
//   - Default-label outcomes for operations that report nothing per item
//
// The processor never spawns goroutines and holds no reference to the
// progress context outside a PopulateQueue call.
package batch
