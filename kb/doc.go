// Package kb is the knowledge base cluster: entities connected by typed
// relations, each relation carrying a truth value that varies over time,
// evaluated through logical contexts and extended by rule inference.
//
// # Overview
//
// Facts take the shape:
//
//	[Type]([Subject], [Object]) = [TruthValue] over [Interval]
//
// For example:
//   - LIKES(JOHN, MARY) = TRUE from 2024-01-01 to 2024-06-01
//   - LOCATED_IN(OFFICE, BERLIN) = TRUE (open-ended)
//   - SUSPECTS(ALICE, BOB) = MAYBE(0.8) yesterday
//
// # Core Concepts
//
// Truth values (kb/truth) span four states: TRUE, FALSE, UNKNOWN, and
// SUPERPOSITION with a confidence weight. Connectives propagate weights
// and never short-circuit.
//
// Relations (kb/ontology) are typed, directed edges between entities with
// a default truth value; their timelines (kb/temporal) store
// non-overlapping intervals each carrying one value. Queries outside
// every interval fall back to the relation default.
//
// Contexts (kb/contexts) compose relations through connectives and
// quantifiers into named, reusable conditions, evaluated at an instant or
// partitioned across a range.
//
// Inference (kb/inference) runs rules-as-data to a deterministic
// fixpoint, deriving new relations and truth facts, reporting
// contradictions and budget exhaustion instead of failing the run.
//
// # Session
//
// Session is the single mutation gate. Every host (the CLI, the REPL,
// the websocket server, the watch engine) drives one Session, which
// serializes mutations, writes committed changes through to the durable
// store when one is attached, and fans events out to registered sinks.
//
//	sess := kb.NewSession()
//	sess.CreateEntity("JOHN", nil)
//	sess.CreateEntity("MARY", nil)
//	sess.CreateRelation("JOHN", "LIKES", "MARY", truth.Unknown)
//	sess.Assert("JOHN", "LIKES", "MARY", temporal.Span(from, to), truth.True)
//	v, _, _ := sess.QueryAt("JOHN", "LIKES", "MARY", at)
//
// Statements from the surface syntax (kb/parser) compile to ops the
// session executes:
//
//	stmt, _ := parser.Parse("LIKES(JOHN, MARY) = TRUE")
//	op, _ := parser.Compile(stmt)
//	result, _ := sess.Execute(op)
//
// # Package Structure
//
//   - kb/           - Session, sinks, op execution
//   - kb/truth/     - four-state truth algebra
//   - kb/ontology/  - entity/relation arena
//   - kb/temporal/  - interval timelines and partitions
//   - kb/contexts/  - named condition trees and evaluation
//   - kb/inference/ - rule engine
//   - kb/parser/    - surface syntax
//   - kb/snapshot/  - JSON save/load
//   - kb/storage/   - durable SQLite store
//   - kb/watch/     - standing pattern watchers
package kb
