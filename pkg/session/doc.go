/*
Package session serializes access to conversations.

A flow execution is inherently sequential per conversation: a get/signal/put round trip must not
interleave with another one on the same conversation. Manager provides that discipline with
ref-counted local mutexes, optionally backed by a distributed lock shared by replicas.
*/
package session
