// Package naming derives ordering keys, season/episode hints, and candidate
// series titles from file and directory names, and formats merged output
// filenames.
//
// Every function in this package is pure: the same input always yields the
// same result, which keeps discovery ordering and output names stable across
// repeated runs against an unchanged directory.
package naming
