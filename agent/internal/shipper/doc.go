// Package shipper pushes compute results to vitals-server over gRPC.
//
// Results are buffered in a bounded channel; when it is full the oldest
// report is evicted so the server always gets the freshest data after an
// outage. Run dials the server, drains the buffer through
// SampleService/PushSample, and reconnects with jittered exponential backoff
// capped at ship_interval. InvalidArgument, Unauthenticated, PermissionDenied
// and ResourceExhausted replies are permanent and the report is dropped;
// anything else requeues it and reconnects.
package shipper
