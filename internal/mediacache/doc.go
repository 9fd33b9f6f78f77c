// Package mediacache persists the ordered index of locally cached media.
//
// The index lives in SQLite (modernc.org/sqlite, WAL mode). Media files live
// under the media directory in one subdirectory per acquisition run; the
// index stores paths relative to that directory. Write replaces the whole
// index in a single transaction, then removes run directories the new index
// no longer references, so viewers see either the previous slideshow or the
// new one and never a mix. Schema changes ship as numbered files under
// migrations/.
package mediacache
