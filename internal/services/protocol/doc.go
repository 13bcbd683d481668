// Package protocol is the protocol store: the key and session state the
// ratchet implementation reads and writes, partitioned by identity scope.
//
// Store takes the scope as a parameter on every call, for code paths that
// only learn the scope at runtime. For returns a view fixed to one scope.
// Local identity material is file backed and guarded by a reader/writer
// lock; everything else lives in the relational store.
package protocol
