// Package canon provides RFC 8785 canonical JSON and domain-separated
// SHA-256 hashing.
//
// Canonical JSON is the only serialization used for golden traces, stored
// call arguments and digests, so that two runs with the same seed produce
// byte-identical output. The same domain-separated hash drives the
// deterministic faker's counter-mode stream.
package canon
