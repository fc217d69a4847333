// Package server implements the client-facing transports: raw TCP and
// WebSocket audio intake with NDJSON result delivery, plus the HTTP
// monitoring API.
package server
