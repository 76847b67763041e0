// Package debug records HTTP exchanges to a log file.
//
// The log is rewritten on every request, so it always holds the last
// exchange: the equivalent curl command, the request as sent on the wire
// ("> " lines) and the response ("< " lines).
package debug
