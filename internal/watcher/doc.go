// Package watcher implements the polling loop that re-runs tasks after the
// checked-out branch changes.
//
// Each tick reads the branch, rebuilds the registry from configuration, and
// walks every task carrying the watcher's trigger tag. A task is eligible
// when it is idle and has not yet processed the branch; it is triggered only
// when each dependency is neither busy nor behind. Ordering between dependent
// tasks emerges from repeated ticks: nothing waits, nothing locks, and a
// deferred task is simply reconsidered on the next tick.
package watcher
