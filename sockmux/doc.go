/*
Package sockmux coordinates logical message sessions shared by short-lived
transport connections (long-poll, streaming HTTP, websocket emulation).

Many independent connections may address the same session id. The Registry
resolves an id to its live Session, creating it on first use; each Session
owns the conversation state: the connecting/open/closed lifecycle, the FIFO
outbound queue, the disconnect/heartbeat timers, and the identity of the one
transport connection currently allowed to wait for outbound data.

A transport connection polls with Session.Reply and delivers client data
with Session.Received. The application sees the session through the Handler
callbacks and talks back with Session.Send and Session.Close.

Wire framing and HTTP handling are deliberately left to the caller: Reply
hands out structured frames, never encoded payloads.
*/
package sockmux
