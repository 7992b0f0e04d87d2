// Package transport provides application-side audio transports that plug
// into the device buffer: a loopback that routes captured audio back to
// playout and a WAV file source for render-only sessions.
package transport
