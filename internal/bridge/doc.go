// Package bridge turns SpaceAPI feed payloads into chat notifications and
// answers on-demand status queries.
//
// The feed side is a single loop (Loop) that compares every payload against
// a one-slot Cache and fans a rendered Message out to the configured rooms
// when the state changed. The chat side (Router) hands every query and every
// invitation to its own goroutine; none of them touch the Cache.
package bridge
