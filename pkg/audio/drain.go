package audio

// Drain reads from ch until the channel is closed, discarding all values.
// Use this to prevent goroutine leaks when a frame stream must run to
// completion but its data is no longer needed (e.g. after a capture attempt
// has been superseded).
func Drain[T any](ch <-chan T) {
	for range ch {
	}
}
