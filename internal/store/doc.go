// Package store keeps the latest readiness status of each dashboard resource
// and fans updates out to subscribers.
//
// The main components are:
//
//   - [Store]: Interface defining storage and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [ResourceStatus]: Storage representation of one resource's state
//
// Subscribers receive updates via channels with non-blocking sends (slow
// subscribers will miss updates rather than block the pollers).
package store
