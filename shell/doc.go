// Package shell holds the application plumbing shared by the statistics engine and the services:
// query and command observability helpers and the optimistic concurrency retry.
//
// Nothing in here knows about the library domain rules; it only wires cross-cutting concerns
// around the calls that do.
package shell
