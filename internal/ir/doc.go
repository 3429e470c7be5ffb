// Package ir provides the record value model shared by every offsync package.
//
// Records are JSON objects. They are held in memory as a sealed Value tree
// (Null, String, Int, Float, Bool, Array, Object) so the rest of the module
// never has to type-switch over encoding/json's interface{} soup.
//
// This package imports nothing internal. All other internal packages import ir.
//
// Key design constraints:
//   - A record's identity is its "id" field, either a string or an integer (ID).
//   - Equality is structural (Equal): object key order never matters and
//     numbers compare by value, so 1 and 1.0 are the same number.
//   - Serialization for storage uses RFC 8785 canonical JSON (MarshalCanonical)
//     so persisted bytes are stable across runs.
package ir
