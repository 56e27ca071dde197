// Package core implements the per-namespace synchronization pipeline: the
// immutable configuration Snapshot, the Repository that keeps it fresh over
// HTTP, the change diff and listener dispatch, and the merged property view
// exposed through the public Config facade.
//
// Layering: the public confsync package delegates here; core depends on
// transport, meta, notify, flowcontrol, cache and wire, never the other way
// around.
package core
