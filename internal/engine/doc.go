// Package engine orchestrates operation invocations.
//
// An invocation flows through:
//
//  1. descriptor resolution (metadata.Resolver)
//  2. parameter collection (params.Collector), which may end the invocation
//     with a cancellation before anything is submitted
//  3. grouping of the targets into submission groups (GroupTargets)
//  4. the strict-handling retry loop per group (at most two rounds per entity)
//  5. side effects of every fulfilled entity, before the next group is submitted
//  6. one presentation decision (messages.Aggregate) handed to the dialog host
//
// Every caller call gets its own InvocationRequest and StrictHandlingState;
// nothing survives between invocations except what the journal and the
// user-default cache persist.
//
// Journal records are stamped from a JournalSeq, never by wall time, so a
// scenario run against fakes journals a reproducible timeline.
package engine
