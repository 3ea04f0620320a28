// Package shared holds the error kinds of the database layer.
//
// Errors are marked with a sentinel and classified with KindOf:
//
//	_, _, err := native.Get(ctx, "SELECT 1")
//	switch shared.KindOf(err) {
//	case shared.KindUnavailable:
//	    // the active client is not sqlite, use the query-builder connection
//	case shared.KindConflict:
//	    // a native transaction is open on the shared connection
//	case shared.KindTimeout:
//	    // pool acquire or ping ran out of time
//	}
//
// MarkKind keeps the original error reachable:
//
//	err = shared.MarkKind(err, shared.KindValidation)
//	// errors.Is(err, shared.ErrValidation) == true
//	// errors.Is(err, original) == true
package shared
