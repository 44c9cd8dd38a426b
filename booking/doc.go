// Package booking is the spa booking client built on the query cache.
//
// It wires one resource family per cache key:
//
//	treatments                     list of treatments, prefetched at start
//	staff                          list of staff, filterable by treatment
//	appointments/<yyyy>/<mm>       one month of appointments, polled
//	user                           the signed-in user
//	appointments/user              appointments of the signed-in user
//
// Reads go through Service watchers that own a query.Observer; writes go
// through mutation.Run with optimistic updates where the UI expects them.
package booking
