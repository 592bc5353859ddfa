// Package protocol parses the line-oriented command language and executes
// commands against a queue store.
//
//	ADD <queue> <length> <payload>  -> <id>
//	GET <queue>                     -> "<id> <length> <payload>" | NONE
//	ACK <queue> <id>                -> YES | NO
//	IN  <queue> <id>                -> YES | NO
//
// Tokens are separated by any whitespace, so a payload is a single token.
package protocol
