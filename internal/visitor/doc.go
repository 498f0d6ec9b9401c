// Package visitor classifies inbound requests into immutable visitor records.
//
// Classification is a pure function of the request line, the header set and
// an optional geolocation context supplied by the edge. It never fails and
// performs no I/O: a signal that is missing or unrecognized leaves the
// corresponding optional field unset.
package visitor
