// Package reconcile resolves a (phone number, account identity, phone-number
// identity) triple to exactly one local recipient.
//
// Planning and execution are split. Plan is a pure function from the
// recipients matched by the three identifiers to an ordered list of Ops
// (Create, SetAci, SetPni, SetE164, Merge). Engine runs the point queries,
// applies the ops inside one recipient transaction, re-queries, and attaches
// any identifier the plan could not attach yet.
//
// An account identity is never overwritten once set: a conflicting one always
// ends up on a different recipient.
package reconcile
