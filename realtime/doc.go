// Package realtime keeps one live websocket connection per signed-in user and
// folds the events it carries into the entity cache.
//
// The Reconciler owns the connection's read and write loops. Inbound events
// are routed as follows:
//
//   - presence.snapshot replaces the presence set wholesale.
//   - typing / typing.stop set and clear a peer's typing flag per conversation.
//   - message.delivered is appended to the open conversation's transcript,
//     keyed by message id so a local append and its echo never duplicate.
//     For any other conversation the conversation summary is invalidated and
//     the unread message counter incremented.
//   - notification.created is prepended to the cached notification list and
//     increments the unread notification counter.
//
// Presence and typing state is cleared whenever the connection drops. After
// every (re)connect the Reconciler requests a fresh presence snapshot and
// rejoins the open conversation.
//
// Outbound typing signals are throttled per conversation, and a local idle
// timer emits typing.stop when keystrokes cease.
package realtime
