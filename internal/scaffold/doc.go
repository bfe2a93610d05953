// Package scaffold is the entry point of the extension scaffolding engine.
// An Engine loads template bundles and extension kinds once, checks that
// every kind can render with the tokens it guarantees, and then serves any
// number of generator runs. A run resolves tokens, renders, plans merges
// against a snapshot of the target project and hands the plan to the
// writer.
package scaffold
