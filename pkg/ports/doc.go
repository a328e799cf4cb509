/*
Package ports defines the driven ports (interfaces) of the flow execution engine.

These interfaces decouple the engine and its repository from concrete backends, so the same
flows can run against in-memory, file, Redis or SQLite storage.

# Key Interfaces

  - FlowLocator: resolves Flow definitions by id (e.g., a registry filled from code or documents).
  - ConversationStore: persists conversation records holding continuation snapshots.
  - DistributedLocker: serializes access to one conversation across replicas.
  - KeyGenerator: mints conversation and continuation ids.
*/
package ports
