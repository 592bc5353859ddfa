// Package tcpserver serves the text command protocol over TCP.
//
// Each connection carries exactly one command: the server reads it, executes
// it, writes one reply without a trailing newline, half-closes and closes.
// Malformed commands get no reply and the connection is reset. A command
// whose result could not be persisted stops the server.
package tcpserver
