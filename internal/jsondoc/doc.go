// Package jsondoc provides a typed semantic tree for JSON response documents.
//
// A parsed document is a tree of sealed Value nodes: Null, String, Number,
// Bool, Array and Object. Only types in this package implement Value, which
// keeps type switches over documents exhaustive.
//
// Key lookups never panic and never conflate absence with null:
//
//	v, ok := obj.Get("Datastreams@iot.count")
//	// ok == false: the key is absent
//	// ok == true, v == Null{}: the key is present with a null value
//
// Numbers keep their literal text so that integer counts and floating point
// observation results survive a round trip unchanged.
//
// MarshalCanonical produces RFC 8785 style canonical JSON (UTF-16 key order,
// NFC-normalized strings, no HTML escaping). It is used for golden report
// snapshots, where byte-identical output across runs is required.
package jsondoc
