// Package parser extracts typed records from sync-archive members.
//
// Two record shapes exist. A desc record is a sequence of %TAG% blocks,
// each tag followed by one value line:
//
//	%NAME%
//	gcc
//
//	%VERSION%
//	13.2.1-3
//
//	%DESC%
//	The GNU Compiler Collection
//
// ParseDesc extracts NAME, VERSION and DESC and ignores every other
// tag. A record without NAME or VERSION is malformed; the updater logs
// and skips it rather than aborting the run.
//
// A files record is a %FILES% header followed by one relative path per
// line; ParseFiles returns the paths in order. Directory entries keep
// their trailing separator so the store can filter them later.
package parser
