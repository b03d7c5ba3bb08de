package btree

import (
	"time"
)

// transactionReaper is the background goroutine closing read transactions
// that were never closed by their owner. It walks the transaction FIFO
// from the head: transactions sit there in creation order, so the walk can
// stop at the first transaction that is neither closed nor expired. One
// reap cycle runs every read timeout.
func (bt *BTree[K, V]) transactionReaper() {
	defer bt.background.Done()

	for {
		select {
		case <-bt.reaperStop:
			return
		case <-time.After(bt.ReadTimeout()):
		}

		timeoutDate := time.Now().Add(-bt.ReadTimeout())
		reaped := 0

		for {
			transaction := bt.readTransactions.Peek()
			if transaction == nil {
				break
			}

			if transaction.IsClosed() {
				// Closed by its owner, just remove it from the queue
				bt.readTransactions.Poll()
				continue
			}

			if transaction.CreationDate().Before(timeoutDate) {
				transaction.Close()
				bt.readTransactions.Poll()
				reaped++
				continue
			}

			// Everything behind this transaction is younger, stop here
			break
		}

		if reaped > 0 {
			bt.metrics.reapedTxns.Add(reaped)
			bt.log.Debugf("reaped %d expired read transactions", reaped)
		}
	}
}
