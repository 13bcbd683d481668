// Package account bootstraps this device's identity and owns the self
// recipient.
//
// Bootstrap generates both identity key pairs, both registration ids and the
// service credentials exactly once. The self recipient is cached; every write
// that changes self identifiers goes through this package and drops the cache.
package account
