// Package app wires application dependencies for the CLI.
//
// It loads Config from an optional YAML file, then builds the SQLite store,
// the file-backed identity stores, the reconciler, the protocol store and
// the account and pre-key services, exposing them via the Wire struct for
// commands to use.
package app
