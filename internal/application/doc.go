// Package application provides application initialization and dependency wiring.
// It assembles the configuration sources, the reload watcher, the HTTP handlers
// and the server, keeping the main package focused on CLI parsing and
// orchestration.
package application
