// Package config loads topicstore settings.
//
// Settings come from three places, later ones winning:
//
//  1. Built-in defaults (Default).
//  2. A config file. The format is chosen by extension: .toml, .yaml/.yml,
//     or .json/.jsonc/.hujson (JSON with comments and trailing commas).
//  3. Environment variables prefixed with TOPICSTORE_ (see EnvPrefix).
//
// Unknown keys in a file are rejected. Load validates the merged result.
//
// Watch reloads the file when it changes on disk.
package config
