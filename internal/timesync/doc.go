// Package timesync provides the capture clock and the fixed textual timestamp
// format used in published events.
//
// Live sessions are stamped with the wall clock when the pipeline runs.
// Replayed captures carry their own packet timestamps, which take precedence.
package timesync
