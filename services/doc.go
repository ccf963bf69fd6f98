// Package services groups the application services of the library backend.
//
//   - books: catalog maintenance and the popularity report
//   - readers: reader registration, profiles, loan cards and the reader reports
//   - lending: checking books out and in, which is what produces the borrowing history
//
// Each call opens its own unit of work, so services are safe for concurrent use.
package services
