// Package core defines the boundary data model of the relay: the task and
// response envelopes exchanged with the dispatcher, the normalized request
// payload handed to provider adapters, and the single Result shape every
// adapter must produce regardless of backend.
package core
