// Package web serves the inSPIRE-interactive pages and JSON endpoints.
//
// Routes are registered on a gorilla/mux router. Handlers never wait on jobs:
// submission and cancellation go through pipeline.Runner, status pages read a
// workflow.Snapshot. Failures inside an action are reported as a 200 reply
// carrying {"message": "inSPIRE-Interact failed with error code: ..."} so the
// browser forms can show them; only unknown pages or result files produce
// 404, and mismatched methods 405.
package web
