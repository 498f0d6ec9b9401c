// Package store declares the visitor log persistence contract. Implementations
// live in subpackages; this package must not import database drivers.
package store
