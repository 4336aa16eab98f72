// Package idgen produces experiment identifiers from wall-clock time.
//
// Identifiers have second resolution (layout 20060102150405), so two
// experiments created within the same second get the same base identifier.
// The generator never decides on its own whether an identifier is taken;
// callers detect collisions against the registry and ask for a suffixed or
// next-second candidate according to the configured [Policy].
//
// The clock is injected so tests can freeze or advance time.
package idgen
