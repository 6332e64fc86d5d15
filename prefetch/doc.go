// Package prefetch streams batches to a training loop ahead of when they are
// needed.
//
// A Queue runs one producer goroutine that pulls from a Sequence and pushes
// into a bounded channel, blocking when it is full. A Loader starts a fresh
// Queue for every epoch of a batch source. HostPrefetcher exposes the loader
// as a Next/Reset iterator, and DevicePrefetcher adds one batch of device
// transfer lookahead: while the caller computes on the batch it was just
// given, the following batch is already being copied on a dedicated stream.
package prefetch
