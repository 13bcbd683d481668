// Package commands defines the keyward CLI and wires dependencies for subcommands.
//
// Commands
//
//   - init         Create the local identity for a new registration
//   - fingerprint  Print the fingerprints of both identity keys
//   - whoami       Print the recipient standing for this account
//   - resolve      Reconcile identifiers into a single recipient
//   - recipients   List every known recipient
//   - prekeys      Generate a pre-key batch and print the public bundle
//   - set-number   Record a phone number change for this account
//   - passphrase   Save or forget the storage passphrase in the OS keyring
//
// # Implementation
//
// The root command loads <home>/config.yaml (or --config), applies flag
// overrides and builds the dependency graph (database, file stores,
// reconciler, protocol store, services) before any subcommand runs. The
// graph is closed again once the subcommand returns.
package commands
