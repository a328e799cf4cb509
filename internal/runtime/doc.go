// Package runtime implements the flow execution state machine.
//
// A FlowExecution owns a stack of FlowSessions, one per flow nesting level. Start and
// SignalEvent run synchronously until the execution pauses at a view state or its root
// session ends; between calls the execution is idle and can be snapshotted for storage.
// Failures raised while entering a state are offered to declarative exception handlers;
// unclaimed failures roll the execution back to where the call found it.
package runtime
