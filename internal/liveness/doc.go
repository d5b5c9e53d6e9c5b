// Package liveness maps a job to an OS process through a pid file in the
// project home and reports whether that process still exists.
//
// A missing pid file means the job never started. A recorded pid that the
// kernel still knows about means the job is waiting or running. Anything else
// means it finished. Pid reuse after a job exits can make a finished job look
// alive; callers treat the answer as a heuristic.
package liveness
