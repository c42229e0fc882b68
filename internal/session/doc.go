// Package session implements the conversation session controller.
//
// # Lifecycle
//
// A session moves through idle, starting, active, and streaming states.
// Start opens a conversation from the first prompt; Send submits
// follow-ups; Resume attaches to an existing conversation. Sending
// while a reply is still streaming supersedes the in-flight turn: the
// old stream is stopped and its late events are ignored.
//
// # Placeholder reconciliation
//
// Each turn appends the user message and an empty assistant
// placeholder. Partial events append fragments to the placeholder; the
// final event replaces it with the authoritative assistant message when
// one is sent, falls back to the flat output text, or leaves the
// accumulated fragments. Error events replace the placeholder content
// with a formatted error string so the failure is visible in the
// transcript.
//
// # Observation and archiving
//
// OnEvent observes applied events for rendering. An Archiver, when
// configured, receives the conversation and each finished turn on a
// detached timeout context so slow storage never blocks streaming.
package session
