// Package recall caches per-owner memory context between turns.
//
// Each owner gets a single slot holding the last computed context, the
// profile freshness token it was computed against, and the normalized
// query it answered. The memory builder reuses the slot when the profile
// is unchanged and the new query looks like the same topic; anything else
// overwrites it. Empty results are cached too.
//
// MemoryCache is the in-process backend; RedisCache shares the slots
// across gateway instances and degrades to a miss on any Redis failure.
package recall
