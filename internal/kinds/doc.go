// Package kinds is the extension registry. Extension kinds are data: each
// entry in a source's kinds.yaml names the tokens a kind needs, the template
// bundle it renders and the manifest fragments merged into the project.
// Adding a kind never requires engine changes.
//
// Documents are validated against an embedded JSON Schema before decoding.
// Fragment values are kept as ordered JSON so generated manifest entries
// keep the key order they were written with.
package kinds
