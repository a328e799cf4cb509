/*
Package domain contains the flow definition model and the runtime records of the Pergola engine.

A Flow is an immutable graph of States joined by Transitions. It is built once (see package dsl),
resolved, and then shared read-only by every execution. The runtime side of the package holds the
value records the engine persists between invocations: FlowSession, Snapshot, Conversation and
ContinuationKey.

# Key Entities

  - Flow: a named graph with a start state, global transitions and exception handlers.
  - State: one of ActionState, ViewState, SubflowState or EndState.
  - Transition: an edge guarded by TransitionCriteria over the signaled event id.
  - FlowSession: one activation record on an execution's session stack.
  - ViewSelection: what a paused or ended execution hands back to the caller.
  - ContinuationKey: the (conversation, continuation) pair naming one stored snapshot.

The package has no I/O. Storage, transport and flow lookup live behind the interfaces in
package ports.
*/
package domain
