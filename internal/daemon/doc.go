// Package daemon runs the long-lived interact process.
//
// It holds a flock-based instance lock under the log directory, serves the
// web handlers over HTTP and runs the queue reconciler alongside them. The
// reconciler removes queue entries whose job process has died so a crashed
// job cannot hold the front of the queue forever, and records the abandoned
// stage in the project's task tracker.
//
// Keep request handling in the web package and job lifecycle in workflow;
// the daemon only owns startup, shutdown and periodic housekeeping.
package daemon
