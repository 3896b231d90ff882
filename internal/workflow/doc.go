// Package workflow is the songflow scheduler: a fixed-interval tick loop that
// reconciles the serviced sessions against the state store and dispatches the
// stage processors that move songs through the pipeline.
//
// Each tick lists the active and closing sessions, cancels and reverts any
// tracked session that disappeared, reads the shared settings once, and then
// walks every session:
//
//   - stale cleanup deletes songs stuck in a transient status
//   - lifecycle closes finished oneshot sessions and retires drained ones
//   - the queue keeper tops up the buffer (one insert per tick at most)
//   - retry moves retry_pending songs back into the pipeline
//   - metadata, cover, submit and poll processors are spawned as goroutines
//
// Spawned processors are guarded by per-session busy flags held in
// SchedulerState and never awaited by the loop. Every processor runs under
// the session context and abandons without writing once it is cancelled;
// Startup recovery (Recover) and stale cleanup resolve whatever is left.
package workflow
