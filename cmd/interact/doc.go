// Command interact is the inSPIRE-interactive front end.
//
// `interact serve` runs the web server and queue reconciler. The queue
// subcommands are the bookkeeping steps generated job scripts call between
// pipeline stages; `interact job run` performs a whole job in one process.
// The remaining subcommands inspect or cancel jobs and manage the
// configuration file.
package main
