// Package workflow moves one job through the global queue and its stages.
//
// A job registers its pid, joins the queue with Admit, blocks in WaitForTurn
// until it reaches the front, then reports every stage through Record so the
// task tracker and the queue's running label stay in step. Finish removes the
// job from the queue. Shell job scripts call these steps one at a time through
// the interact CLI; the native Executor runs the whole sequence in-process.
//
// Failure of a blocking stage ends the job with ErrBlockingFailure and skips
// the remaining stages. Failure of a non-blocking stage is recorded and the
// job carries on with the next stage.
//
// Snapshot assembles what the status pages need from the pid record, the
// queue and the tracker.
package workflow
