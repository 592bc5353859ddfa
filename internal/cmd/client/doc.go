// Package client provides the `taskqueue client` commands.
//
// Every command opens one TCP connection, sends one line, half-closes and
// prints the reply. The server address comes from --addr, defaulting to
// TASKQ_ADDR or 127.0.0.1:8080.
//
// Usage
//
//	taskqueue client add jobs hello          # prints the new id
//	taskqueue client add jobs blob --length 4096
//	taskqueue client get jobs                # "id length payload" or NONE
//	taskqueue client ack jobs 0              # YES or NO
//	taskqueue client in jobs 0               # YES or NO
//	taskqueue client send GET jobs           # raw command line
//	taskqueue client health --grpc :9090     # gRPC health check
//
// Notes
//
//   - The server answers malformed commands and unknown queues by closing
//     the connection; the client reports that as an error.
//   - --json prints replies as JSON objects.
package client
