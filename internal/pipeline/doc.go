// Package pipeline turns a run request into a launched inSPIRE job.
//
// Submit checks admission against the pid record and the queue, writes the
// per-job config.yml, seeds the task tracker, writes inspire_script.sh and
// starts it detached in its own process group. The script then does all the
// queue and tracker bookkeeping by calling back into the interact binary.
// Cancel and ClearQueue stop running scripts and record the cancellation.
package pipeline
