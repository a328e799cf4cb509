/*
Package repository persists flow executions between invocations under continuation keys.

Every pause stores a new continuation in the conversation's record; the record keeps a bounded
history (DefaultMaxContinuations) so that a user going back a few steps can resume from an
older key. When an execution ends, its conversation is invalidated and every key of it stops
resolving.
*/
package repository
