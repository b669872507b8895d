// Package harness runs conformance scenarios against recorded SensorThings
// responses.
//
// A scenario bundles the fixture dataset a service was loaded with and a
// list of checks. Each check validates one recorded response and states the
// outcome it expects, so negative samples (responses that must be rejected)
// live next to positive ones.
//
// # Scenario Format
//
//	name: things_paging
//	description: "Paging over the Things collection"
//	fixtures:
//	  track: [Sensor]
//	  entities:
//	    - {type: Thing, id: 1, properties: {name: Lab}}
//	    - {type: Datastream, id: 10}
//	  links:
//	    - from: {type: Thing, id: 1}
//	      to: {type: Datastream, id: 10}
//	checks:
//	  - name: top two
//	    type: validate_response
//	    request: /Things?$top=2&$count=true
//	    response_file: responses/things_top2.json
//	    expect: PaginationMismatch
//	  - name: lab things
//	    type: result_contains
//	    request: /Things?$filter=name eq 'Lab'
//	    response: '{"value": [{"@iot.id": 1}]}'
//	    expect_ids: [1]
//
// Fixtures may instead come from a YAML file (fixtures_file) or a CUE
// package whose fixtures field has the same shape (fixtures_cue).
//
// # Check Types
//
//   - validate_response: validates the response against the request and the
//     fixture oracle; the outcome is pass or the mismatch kind found
//   - result_contains: compares the ids of a collection response with
//     expect_ids, or with every fixture entity of the expect_all kind; the
//     outcome is pass or SetMismatch. An optional request names the query
//     that produced the collection in the failure detail
//
// # Deterministic Testing
//
// Fixtures are saved into a SQLite store (in-memory unless one is supplied)
// and the oracle is read back from it. The trace holds only the check
// name, expected and actual outcome and mismatch detail, so traces are
// identical across runs and can be compared against golden files.
package harness
