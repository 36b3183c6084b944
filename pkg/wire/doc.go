// Package wire defines the agent→server sample transport: the
// vitals.v1.SampleService gRPC service and the structpb encoding of its
// request (Report) and response (Ack) messages.
//
// Messages travel as google.protobuf.Struct so agent and server share one
// schema without a protoc step. Field names are snake_case; timestamps are
// RFC 3339 strings; numbers are doubles.
package wire
