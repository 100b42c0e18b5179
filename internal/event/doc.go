// Package event provides the synchronous publish/subscribe bus that
// connects the decoder side of the client (markup interpreter, variable
// store) with the application side (network session, input line).
//
// Events are Event[T] values carrying a dot-separated topic such as
// "mxp.tag" or "command.emit". Subscriptions use topic patterns where "*"
// matches one segment and "**" matches any number of segments. Payload
// types and topic names live in the events subpackage.
package event
