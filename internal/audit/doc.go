// Package audit provides asynchronous dispatch of session-lifecycle events
// to pluggable sinks. The dispatcher decouples emitters from sink latency;
// the session core never blocks on observability.
package audit
