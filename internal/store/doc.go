// Package store keeps the latest rendered state of every dashboard panel.
//
// The main components are:
//
//   - [Store]: Interface defining storage and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [PanelState]: Storage representation of a panel's display state
//   - [Ordering]: policy for requests that resolve out of issue order
//
// Panels keep registration order so every surface lists them the same way.
// Subscribers receive updates via channels with non-blocking sends (slow
// subscribers will miss updates rather than block the system).
//
// Users of the statsboard library should not need to interact with this
// package directly.
package store
