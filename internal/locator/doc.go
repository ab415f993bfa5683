// Package locator resolves file-ownership and package metadata queries.
//
// It is the read-side companion to the searcher: where search ranks
// fuzzy matches, the locator answers precise questions. Which package
// owns /usr/bin/gcc? What files does fakeroot install? What version of
// vim would a transaction pull in, and from which repository?
//
// All lookups collapse duplicate package names to the repository with
// the highest configured priority, matching what an installation would
// actually pick. Paths are reported absolute; the underlying index
// stores them without the leading separator.
package locator
