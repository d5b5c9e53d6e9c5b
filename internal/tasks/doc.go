// Package tasks records the per-job progress of pipeline stages.
//
// The stage catalog fixes the execution order of every stage the inSPIRE
// pipeline knows about and declares which stages may fail without halting the
// job. A job runs an ordered subset of the catalog chosen from its settings;
// the tracker persists that subset as taskStatus.csv in the project home and
// moves entries through Queued, Running, Completed, Failed, Skipped and
// Job Cancelled as the job script reports results.
package tasks
