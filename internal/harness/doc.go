// Package harness runs invocation scenarios against the real engine.
//
// A scenario names a service definition, an operation and its targets, then
// scripts every collaborator the engine talks to: the transport's per-entity
// replies and path values, the dialog host's answers and side-effect
// failures. The harness records each interaction in call order, journals the
// invocation to an in-memory store and checks the outcome against the
// scenario's expectations and assertions.
//
// # Scenario Format
//
//	name: changeset_confirmation
//	description: "One entity needs confirmation; the user accepts"
//	service: ../services/orders.cue
//	operation: OrderService.approve
//	targets:
//	  - {path: /Orders(1), type: Orders}
//	  - {path: /Orders(2), type: Orders}
//	options:
//	  grouping: changeset
//	  parameters: {Comment: ok, Priority: 1}
//	replies:
//	  /Orders(2):
//	    - status: confirmation_required
//	      messages: [{text: "Credit limit close", severity: warning, target: /Orders(2)}]
//	    - status: success
//	dialogs:
//	  confirmations: [true]
//	expect:
//	  results: {/Orders(1): fulfilled, /Orders(2): fulfilled}
//	  decision: none
//	  status: succeeded
//	assertions:
//	  - type: trace_count
//	    event: submit
//	    count: 2
//
// # Trace Events
//
// Every trace event has a type and a one-line detail:
//
//   - confirm: a yes/no confirmation and its answer
//   - dialog: a parameter dialog, its prefill and its answer
//   - invocation, submit, outcome, finish: journal writes
//   - side_effect: a trigger action or path refresh request
//   - messages: the message list or inline box shown at the end
//
// Ids come from a sequence generator ("id-1", "id-2", ...) so traces are
// identical across runs and can be compared against golden files. WithStore
// journals to a shared database instead; ids are then UUIDv7 and traces are
// no longer comparable.
package harness
