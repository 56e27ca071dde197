// Package logging holds the process-wide logger shared by every confsync
// package. The logger is stored as an atomic pointer so SetLogger is safe to
// call concurrently with all other library operations; the public package
// re-exports SetLogger for applications.
package logging
