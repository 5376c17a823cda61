// Package poller issues the periodic requests of dashboard panels.
//
// Each panel gets its own ticker. Every tick issues a request in its own
// goroutine without waiting for earlier requests, so requests of one panel
// may overlap. Every request carries a per-panel generation number, which
// callers use to apply an ordering policy.
//
// The main components are:
//
//   - [Client]: HTTP client wrapper with timeout, size and JSON checks
//   - [Scheduler]: per-panel tickers emitting [Result] values
//   - [PanelInfo]: what the scheduler needs to know about a panel
//
// Users of the statsboard library should not need to interact with this
// package directly.
package poller
