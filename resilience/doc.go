// Package resilience provides the failure-handling patterns used around
// fetches and remote mutation calls.
//
//   - Backoff: computes the delay after the n-th consecutive failure. The
//     query client uses it as the window during which a failed entry is not
//     refetched.
//   - Retry: re-runs a failed remote call with backoff.
//   - Circuit Breaker: stops calling a failing remote authority after a
//     threshold is reached.
//   - Bulkhead: limits how many fetches run at once.
//   - Timeout: bounds a single call.
//
// Patterns compose through an Executor:
//
//	exec := resilience.NewExecutor(
//	    resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})),
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 2})),
//	    resilience.WithTimeout(5*time.Second),
//	)
//	err := exec.Execute(ctx, func(ctx context.Context) error {
//	    return api.ReserveAppointment(ctx, id, userID)
//	})
package resilience
