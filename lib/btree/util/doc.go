// Package util provides the concurrent queue primitives used by the btree
// engine's background goroutines.
//
// The package focuses on:
//   - Queueing journal records from writers to the journal goroutine
//     without blocking the write path (MPSC)
//   - Registering read transactions so that the reaper can expire them in
//     creation order (TxnList)
//
// Key Components:
//
//   - MPSC: A lock-free, unbounded multi-producer single-consumer queue.
//     Producers append onto a linked list with atomic compare-and-swap
//     operations; a dedicated consumer goroutine drains the list into a
//     channel so that the consumer side composes with select statements.
//     Closing the queue still delivers every item that was accepted.
//
//   - TxnList: A mutex-guarded FIFO supporting Peek and Poll from the head.
//     Because elements are appended in creation order, a consumer walking
//     from the head can stop at the first element that is not yet expired.
//
// Thread Safety:
//
//	Both structures are safe for concurrent producers. MPSC expects a
//	single consumer goroutine; TxnList tolerates concurrent consumers but
//	the engine only ever uses one (the reaper).
package util
