// Package fuzztests houses Go fuzz harnesses for the input side of cbind:
// declaration stream decoding, ingestion and macro folding. They guard
// against panics and runaway allocation on arbitrary input.
package fuzztests
