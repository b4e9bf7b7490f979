// Package internal contains the implementation packages for ssg.
//
// # Package Organization
//
//   - watcher: fsnotify roots, temp-file filtering and per-path debouncing
//   - build: single-flight rebuild coordinator, generator and asset commands
//   - livereload: WebSocket hub and the injected browser client
//   - server: static content server with HTML rewriting and 404 handling
//   - services: composition of the above for the serve and build commands
//   - config, logging, errors, validation, version: shared infrastructure
//
// # Data Flow
//
//	fsnotify -> PathWatcher -> Debouncer -> Coordinator -> pipeline, assets
//	                                              |
//	                                              +-> Hub.Broadcast("reload")
//
// The content server reads the output directory on every request, so a
// finished build is visible before the reload message is sent.
package internal
