// Package ir provides the canonical value and graph types shared by every
// graphrecon package.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal. This keeps ir the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - NO float types in property values - numbers are int64 so canonical
//     encoding and equality stay deterministic
//   - Property bags (Object) marshal with sorted keys (UTF-16 code unit order)
//   - Entity identifiers are composite: "<ownedById>~<entityUuid>"
//   - All JSON tags use camelCase to match the graph API wire format
package ir
