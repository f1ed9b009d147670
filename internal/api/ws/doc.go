// Package ws serves the companion bridge: a WebSocket endpoint for paired
// devices and the browser shell.
//
// Clients connect to /bridge?token=<secret>&deviceId=<id>. A wrong token is
// closed with code 4001.
//
// Message Types (Client → Server):
//   - chat, ai:chat: one model call; replies ai:status then ai:done
//   - ocr:click: clicks target when given, otherwise lists the first 50 words
//   - screen:describe: one-line description of the screen
//   - commands:run: parses text (or takes commands) and starts a queue
//   - confirm:answer: allows or denies a pending desktop action
//   - ping: keep-alive
//
// Message Types (Server → Client):
//   - connected, pong, ai:status, ai:done, ocr:status, ocr:result,
//     screen:description, commands:queued, confirm:answered
//   - queue:progress, confirm:request, command: broadcast to every client
//   - error: {error, originalType}
package ws
