// Package rules loads achievement definitions and turns each trigger into a
// typed Rule.
//
// The definitions document is re-read at the start of every cycle. Load is a
// pure transform from bytes to an immutable RuleSet; nothing in this package
// keeps state between calls, so swapping rule sets between cycles needs no
// locking.
//
// Trigger text is matched with literal phrases and number extraction only.
// Each category owns a small grammar (see grammar.go); a trigger its grammar
// cannot read produces ErrUnparseable and the definition is skipped for the
// cycle. Categories with no evaluator are kept in the set but never
// evaluated.
//
// The time-of-day and meta grammars recognise a fixed list of phrasings. New
// patterns need a new matcher, not new trigger text.
package rules
