// Package deploylock serializes deployments behind a remote set-if-absent key.
//
// WithLock and Guard run an operation only after a lock is acquired and always
// release it afterwards, even when the operation fails or panics. Coordinator
// binds the acquire and release steps to a named key in a Store, which is
// either a Redis server reached directly or redis-cli invoked on a remote host.
//
// Release deletes the key unconditionally. A second process that calls Release
// removes a lock it never acquired, so a single coordinator per lock name is
// assumed.
package deploylock
