// Package receiver implements wire.SampleServiceServer, the gRPC endpoint that
// accepts vitals reports from vitals-agent instances.
//
// PushSample decodes the report (codes.InvalidArgument when the url is missing
// or a metric is negative or not finite), opens or reuses the push session for
// the report's URL and view mode, records the sample or the collection error,
// evaluates alert rules and replies with an Ack carrying the session ID and
// the sample's score. Authentication is enforced upstream by the gRPC server
// interceptor (see package auth).
package receiver
