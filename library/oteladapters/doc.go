// Package oteladapters provides OpenTelemetry implementations of the library observability interfaces,
// so the store, the statistics engine, and the report cache can be wired to an OTel SDK without glue code.
package oteladapters
