package btree

import (
	"os"
)

// Modification tags as written to the journal: 1 tag byte, then the
// serialized key, then (for additions) the serialized value. The poison
// pill is never written; it terminates the journal goroutine.
const (
	modAddition byte = 0x00
	modDeletion byte = 0x01
	modPoisonPill byte = 0x02
)

// modification is one journal record: an addition carrying key and value,
// a deletion carrying only the key, or the terminating poison pill.
type modification[K any, V any] struct {
	kind  byte
	key   K
	value V
}

// --------------------------------------------------------------------------
// Journal goroutine
// --------------------------------------------------------------------------

// journalManager is the background goroutine draining the modifications
// queue into the journal file. Every record is forced to disk before the
// next one is taken. The journal keeps the tree recoverable between
// checkpoints; a record that fails to write is logged and skipped, the
// next successful checkpoint re-establishes durability.
func (bt *BTree[K, V]) journalManager() {
	defer bt.background.Done()

	file, err := os.OpenFile(bt.journal, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		bt.log.Errorf("cannot open journal %s: %v", bt.journal, err)

		// Keep consuming so that producers never block; records are lost
		// for journaling purposes but the data stays in the live tree
		for range bt.modificationsQueue.Recv() {
		}
		return
	}
	defer file.Close()

	for mod := range bt.modificationsQueue.Recv() {
		if mod.kind == modPoisonPill {
			// Orderly shutdown: drain whatever is still enqueued, then exit
			bt.drainJournal(file)
			return
		}

		if err := bt.writeModification(file, mod); err != nil {
			bt.log.Errorf("journal write failed: %v", err)
			bt.metrics.journalErrors.Inc()
		}
	}
}

// drainJournal writes any records that are still queued behind the poison
// pill. The queue is closed right after the pill is enqueued, so ranging
// until the channel closes drains every accepted record. Best effort:
// errors are logged, the checkpoint that follows on close is the
// authoritative persistent state.
func (bt *BTree[K, V]) drainJournal(file *os.File) {
	for mod := range bt.modificationsQueue.Recv() {
		if mod.kind == modPoisonPill {
			continue
		}
		if err := bt.writeModification(file, mod); err != nil {
			bt.log.Errorf("journal drain write failed: %v", err)
			bt.metrics.journalErrors.Inc()
		}
	}
}

// writeModification appends one framed record and forces it to disk
func (bt *BTree[K, V]) writeModification(file *os.File, mod *modification[K, V]) error {
	keyBytes, err := bt.keySerializer.Serialize(mod.key)
	if err != nil {
		return err
	}

	record := make([]byte, 0, len(keyBytes)+1)
	record = append(record, mod.kind)
	record = append(record, keyBytes...)

	if mod.kind == modAddition {
		valueBytes, err := bt.valueSerializer.Serialize(mod.value)
		if err != nil {
			return err
		}
		record = append(record, valueBytes...)
	}

	if _, err := file.Write(record); err != nil {
		return err
	}

	// Flush to the disk for real
	if err := file.Sync(); err != nil {
		return err
	}

	bt.metrics.journalRecords.Inc()

	return nil
}

// resetJournal truncates the journal file to length zero after a
// checkpoint. The journal goroutine keeps its append-mode descriptor; new
// records accumulate a fresh log from offset zero.
func (bt *BTree[K, V]) resetJournal() error {
	file, err := os.OpenFile(bt.journal, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := file.Truncate(0); err != nil {
		return err
	}

	return file.Sync()
}
