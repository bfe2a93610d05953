// Package cli defines the Cobra command tree for the phovea CLI. The add
// command grows one subcommand per registered extension kind, with a flag
// per token. Commands only parse flags and format output; generation is
// delegated to the scaffold engine.
package cli
