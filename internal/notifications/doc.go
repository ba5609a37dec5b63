// Package notifications delivers merge job events to ntfy.
//
// NewService publishes to the topic configured under [notifications] and
// degrades to a no-op when no topic is set, so the job coordinator can call
// it unconditionally.
package notifications
