/*
Package permissions is the capability registry gating desktop automation.

A grant binds a key such as "robot" or "shell" to a Level. Session-only
grants expire eight hours after they are made and are evicted lazily the
next time they are read. Every mutation is written through to
comet-permissions.json and recorded in the append-only comet-audit.jsonl.

Persistence failures are logged and never surface to callers.

	store, err := permissions.Open(cfg.Storage.Dir, permissions.WithLogger(log))
	_ = store.Grant("robot", permissions.LevelInteract, "desktop control", true)
	if store.IsGranted("robot") { ... }
*/
package permissions
