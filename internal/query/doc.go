// Package query describes SensorThings requests: the resource path and the
// query descriptor tree ($select, $expand, $count, $top, $skip) that governs
// each level of the response.
//
// A Request ends in a top-level Expand. Nested expansions hang off each
// Query's Expand list and record the relation they were reached through.
// Selection is evaluated per level, so a nested $select never changes the
// parent's or a sibling's selection.
//
// ParseRequest turns a relative URL into a Request; String renders one back
// in canonical option order for failure messages.
package query
