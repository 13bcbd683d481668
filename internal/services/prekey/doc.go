// Package prekey generates one-time, signed and kyber pre-keys for an
// identity scope and assembles the public bundle published for it.
//
// Ids come from the protocol store's allocators, which look across both
// scopes, so a batch for one scope never reuses an id of the other.
package prekey
