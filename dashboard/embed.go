// Package dashboard provides the embedded web UI assets for Statsboard.
//
// The embedded assets are served by the server package at the root path ("/").
// Users of the statsboard library should not need to interact with this
// package directly.
package dashboard

import "embed"

// Assets is an embedded filesystem containing the dashboard web UI.
//
//	assets/
//	  index.html    - dashboard page; {{.Title}} is replaced at serve time
//
//go:embed assets/*
var Assets embed.FS
