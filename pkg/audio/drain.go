package audio

// Drain reads from ch until the channel is closed, discarding all values.
// Use it when nobody is listening to a synthesis stream so the producer can
// finish and release its connection.
func Drain[T any](ch <-chan T) {
	for range ch {
	}
}
