// Package engine orchestrates the sync operations.
//
// Update loads the local definition, fetches the remote flows, reconciles
// the two, and applies the plan. Build, CreateSnapshot and DeleteSnapshot
// each issue a single remote call. RunTriggers chains them for CI.
//
// ORDERING:
//
// Mutations go through a single-worker queue, one group at a time:
// deletes, then updates, then creates, then the AI rules replacement.
// Within a group the plan's order is kept. The first failure stops the
// queue; nothing is rolled back and nothing is retried.
//
// Every mutation is stamped with a seq from the engine's logical Clock and,
// when a Journal is configured, recorded under the run's id.
package engine
