// Package store provides persistent conversation storage using SQLite.
//
// # Data Models
//
//   - Session: One conversation owned by a single user. The title starts as
//     PlaceholderTitle and transitions to a derived title at most once.
//   - Message: Append-only history entry with a kind (user, assistant,
//     reviewer, citations). Messages are never mutated after creation and
//     render order is creation order.
//   - TurnWrite: The atomic batch a completed turn commits.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Use NewSQLiteStore(":memory:") for tests that want a real database
// without touching disk.
//
// # Error Handling
//
//   - ErrNotFound: Requested entity does not exist
//   - ErrDuplicateSession: Session already exists
//
// All methods accept context.Context for cancellation support.
package store
