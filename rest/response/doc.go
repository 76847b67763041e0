// Package response turns received HTTP responses into values or typed errors.
//
// Content negotiation is driven by the Content-Type header: a type that
// mentions "json" is decoded, anything else is handed back as text.
// Status codes map onto three categories:
//
//	400      invalid argument (message is the body)
//	401, 404 logic
//	403, 500 runtime
//
// Transport failures and undecodable JSON are runtime errors as well.
// Every error is a *Error and works with errors.As.
package response
