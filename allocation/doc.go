// Package allocation issues client serial numbers from a bounded range.
//
// Every serial in [MinSerial, MaxSerial] is in at most one of three sets:
// active (held by a client row), retired (freed by client deletion and never
// reissued) or reserved (held for up to ReservationTTL while a registration
// form is filled in). All writers run inside the exclusive section of a
// LockCoordinator and a database transaction, so decisions are made against
// persisted state and never against a cached counter.
//
// Engine is the entry point. The lock coordinator is pluggable: an
// in-process FIFO semaphore for single-instance deployments, PostgreSQL
// transaction-scoped advisory locks, or a Redis lease.
package allocation
