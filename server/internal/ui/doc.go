// Package ui mounts the Vite-built dashboard on "/".
//
// In production mode the handler reads ui.dir (the Vite build output,
// including .vite/manifest.json) and injects the hashed asset tags into
// index.html. In dev mode it points the page at a running Vite dev server
// for hot reload. Unknown extensionless paths render index.html so the
// client-side router can take over.
package ui
