// Package helper provides test doubles, fixtures, and an in-memory sqlite3 store for tests.
package helper
