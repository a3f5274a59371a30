// Package config loads levelbus settings.
//
// Settings are resolved in three layers, later layers overriding earlier:
//
//	┌─────────────────────────────┐
//	│  3. Environment Variables   │  ← LEVELBUS_*
//	├─────────────────────────────┤
//	│  2. Config File             │  ← levelbus.toml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │
//	└─────────────────────────────┘
//
// A missing config file is not an error. Unknown keys in the file are.
package config
