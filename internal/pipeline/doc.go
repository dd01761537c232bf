// Package pipeline runs one session through the extraction stages and
// publishes the result.
//
//	session bytes ──▶ scanner ──▶ classify ──▶ record ──▶ filter ──▶ encoder ──▶ publisher
//	                     │                       ▲
//	                     └── transport line ─────┘ (fills absent context fields)
//
// Processor implements session.Handler so the ingestion adapters can feed it
// directly. Every stage before publishing is pure and never blocks. A failing
// stage aborts the current session only; nothing partial is ever published.
package pipeline
