// Package source defines configuration sources: named sets of string
// properties ranked by an ordinal. When several sources hold the same key the
// source with the highest ordinal wins.
//
// Every source honours the reserved config_ordinal property: when a source
// holds it and the value parses as an integer, that value replaces the
// source's default ordinal.
package source
