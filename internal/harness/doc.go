// Package harness runs sync scenarios end to end against a fake remote.
//
// Each scenario gets a fresh temporary repository, a FakeStudio served over
// httptest, a real remote.Client signing with a frozen clock, and an
// in-memory journal. The engine under test is the production engine; only
// the remote service is simulated.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	local:
//	  flows:
//	    Default.csml: |
//	      start:
//	        say "hi"
//	  rules: '[{"input": "hello", "flow": "Default"}]'
//	remote:
//	  flows:
//	    - { id: "1", name: Old, content: "start:" }
//	  labels: [v1.0.0]
//	  reject:
//	    - { method: POST, path: /api/bot/build, status: 503 }
//	steps:
//	  - op: update
//	    expect:
//	      applied: 3
//	      summary: { delete: 1, update: 0, create: 1 }
//	  - op: build
//	    expect:
//	      error: APPLY_FAILED
//	assertions:
//	  - type: request_order
//	    requests: ["DELETE /api/bot/flows/1", "POST /api/bot/flows"]
//	  - type: remote_flows
//	    flows: [Default]
//	  - type: journal
//	    run: run-2
//	    expect: { status: failed, kinds: [build] }
//
// Omitting local.flows means the flows directory does not exist; omitting
// local.rules means there is no rules file.
//
// # Step Ops
//
//   - update, dry-run, build
//   - snapshot-create, snapshot-delete (with snapshot: name)
//   - triggers (with triggers: {update, build, create_snapshot,
//     delete_snapshot} and snapshot: name)
//
// # Assertion Types
//
//   - request_contains: a request was made whose body contains the fields
//   - request_order: requests were made in this relative order
//   - request_count: a request was made exactly N times
//   - remote_flows: the remote holds exactly these flow names
//   - journal: a run's status, command, error, operation count and kinds
//
// # Deterministic Testing
//
// Run ids are sequential ("run-1", "run-2", ...), the wall clock is frozen
// at Epoch, and FakeStudio assigns flow ids in creation order. Traces are
// therefore byte-stable and compared against golden files with goldie.
package harness
