// Package alerts evaluates vitals rules against session snapshots and delivers
// firing/resolved notifications to Slack, Teams, or generic HTTP webhooks.
//
// Conditions are "field op value": lcp, fid, cls and score compare
// numerically; lcp_status, fid_status, cls_status and grade compare against a
// status name (good | needs-improvement | poor).
package alerts
