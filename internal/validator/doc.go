// Package validator checks SensorThings response documents against the
// request that produced them.
//
// For every entity the validator derives the effective selection of the
// governing Expand and asserts that exactly the selected properties and
// navigation links are present. Requested expansions are validated
// recursively; relations that were not expanded must not be inlined.
// Collections additionally have their inline count and page length checked
// against an oracle.Oracle, scoped to the parent entity for nested
// expansions.
//
// Validation stops at the first failing assertion and returns a
// *MismatchError describing it.
package validator
