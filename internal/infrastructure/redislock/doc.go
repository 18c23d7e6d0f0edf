// Package redislock provides short-lived named leases used to keep several
// weddingcue instances from sweeping the same event at the same moment.
//
// RedisLocker uses SET NX PX with a random token and releases through a
// compare-and-delete script. LocalLocker gives the same contract inside one
// process and is used when Redis is not configured.
//
// Leases are advisory: the engine's conditional writes are what make a
// double start impossible. The lock only avoids wasted work and noisy
// refusals in the logs.
package redislock
