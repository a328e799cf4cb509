// Package redis provides a Redis conversation store and a distributed locker for
// running the executor on several replicas.
package redis
