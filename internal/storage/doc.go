// Package storage provides the small persistence layer used by the bot.
//
// It holds the chat session (access token, device id, sync position) as
// string key/value pairs so restarts reuse the same device. Two drivers:
//   - "sqlite": a single SQLite file (modernc.org/sqlite, no cgo)
//   - "file":   a JSON snapshot rewritten atomically on every change
package storage
