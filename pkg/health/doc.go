// Package health tracks the live health of inference endpoints and
// credentials.
//
// The Registry keeps one mutable record per entity: success/failure
// counters, a consecutive-failure counter, a reliability score, and
// blocked/inactive state. Failures are recorded with a classified
// FailureKind; rate-limit and quota failures block an entity immediately,
// repeated failures trip a circuit breaker that deactivates it until a
// cool-down elapses.
//
// A background sweep (cron-scheduled) clears expired blocks and reactivates
// entities whose cool-down has passed. If every entity in a pool is blocked
// at once, the sweep force-clears the one with the oldest failure so the
// pool never deadlocks.
//
// All timestamps come from an injectable clock so tests can advance time
// explicitly.
package health
