// Package ws implements the WebSocket hub for vitals-server.
//
// Hub pushes the dashboard snapshot (the GET /api/v1/snapshot payload) to
// every connected client on each interval, and immediately after Notify.
// New clients receive the current snapshot on connect. Each message is
//
//	{"event": "snapshot", "seq": 42, "data": { ... }}
//
// where seq increases by one per broadcast, so clients can spot gaps.
// Connecting with ?session=<id> narrows sessions and alerts to that id.
// The server mounts the hub at /ws/stream behind the API key middleware.
package ws
