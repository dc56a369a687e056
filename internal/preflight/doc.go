// Package preflight provides readiness checks for the filesystem paths and
// binaries noiseplayer depends on.
//
// The CLI "noiseplayer status" command renders these results next to the
// daemon state. None of them gate spawning; a daemon that cannot start its
// player exits on its own and the launcher reports that.
package preflight
