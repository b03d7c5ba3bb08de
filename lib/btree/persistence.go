package btree

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ValentinKolb/bKV/lib/serializer"
	"github.com/google/uuid"
)

// Data file layout: 8 bytes big-endian element count, then that many
// (serialized key, serialized value) pairs in ascending key order. The
// file is a flat sorted dump, no per-page framing is persisted.

// --------------------------------------------------------------------------
// Recovery
// --------------------------------------------------------------------------

// recover loads an existing data file and replays a non-empty journal on
// top of it. Called once from New before the background goroutines start;
// journaling stays disabled throughout so that replay does not re-journal
// itself.
func (bt *BTree[K, V]) recover() error {
	if info, err := os.Stat(bt.file); err == nil && info.Size() > 0 {
		if err := bt.load(bt.file); err != nil {
			return fmt.Errorf("loading data file %s: %w", bt.file, err)
		}
	}

	// Make sure the journal file exists even for a fresh tree
	journalFile, err := os.OpenFile(bt.journal, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("creating journal %s: %w", bt.journal, err)
	}
	journalInfo, err := journalFile.Stat()
	if err != nil {
		journalFile.Close()
		return err
	}
	journalFile.Close()

	if journalInfo.Size() > 0 {
		if err := bt.applyJournal(); err != nil {
			return fmt.Errorf("replaying journal %s: %w", bt.journal, err)
		}

		// Replay completed, retire the journal
		if err := bt.resetJournal(); err != nil {
			return err
		}
	}

	return nil
}

// load reads a data file into the live tree. All entries are inserted
// under a single fresh revision.
func (bt *BTree[K, V]) load(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	bh := serializer.NewBufferHandler(file, bt.writeBufferSize)

	header, err := bh.Read(8)
	if err != nil {
		return err
	}
	count := int64(binary.BigEndian.Uint64(header))

	bt.writeLock.Lock()
	defer bt.writeLock.Unlock()

	revision := bt.revision.Add(1)

	for i := int64(0); i < count; i++ {
		key, err := bt.keySerializer.Deserialize(bh)
		if err != nil {
			return err
		}

		value, err := bt.valueSerializer.Deserialize(bh)
		if err != nil {
			return err
		}

		bt.insertLocked(revision, key, value, false)
	}

	bt.log.Infof("loaded %d entries from %s", count, path)

	return nil
}

// applyJournal replays every record of the journal into the live tree.
// End-of-file terminates replay; a record truncated by a crash terminates
// it as well, everything before it is kept.
func (bt *BTree[K, V]) applyJournal() error {
	file, err := os.Open(bt.journal)
	if err != nil {
		return err
	}
	defer file.Close()

	bh := serializer.NewBufferHandler(file, bt.writeBufferSize)

	bt.writeLock.Lock()
	defer bt.writeLock.Unlock()

	revision := bt.revision.Add(1)
	replayed := 0

	for {
		tag, err := bh.Read(1)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		switch tag[0] {
		case modAddition:
			key, err := bt.keySerializer.Deserialize(bh)
			if err != nil {
				return bt.truncatedJournal(err, replayed)
			}

			value, err := bt.valueSerializer.Deserialize(bh)
			if err != nil {
				return bt.truncatedJournal(err, replayed)
			}

			bt.insertLocked(revision, key, value, false)

		case modDeletion:
			key, err := bt.keySerializer.Deserialize(bh)
			if err != nil {
				return bt.truncatedJournal(err, replayed)
			}

			bt.deleteLocked(revision, key, false)

		default:
			return fmt.Errorf("unknown journal record tag 0x%02x", tag[0])
		}

		replayed++
	}

	bt.log.Infof("replayed %d journal records", replayed)

	return nil
}

// truncatedJournal downgrades a mid-record end-of-stream to a clean stop:
// the record was being written when the process died, everything before it
// is intact.
func (bt *BTree[K, V]) truncatedJournal(err error, replayed int) error {
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		bt.log.Warningf("journal ends mid-record after %d records, discarding the tail", replayed)
		return nil
	}
	return err
}

// --------------------------------------------------------------------------
// Checkpoint
// --------------------------------------------------------------------------

// checkpoint writes the current snapshot to a temporary file in the data
// file's directory, forces it to disk and atomically moves it into place:
// the current data file is first renamed to a backup name, then the new
// file takes the data file path, then the backup is deleted. A crash
// between the renames leaves either the old or the new file intact.
//
// The caller must hold the writer lock.
func (bt *BTree[K, V]) checkpoint() error {
	dir := filepath.Dir(bt.file)

	tmp := filepath.Join(dir, fmt.Sprintf(".%s-%s.tmp", bt.name, uuid.NewString()))

	if err := bt.writeSnapshot(tmp); err != nil {
		os.Remove(tmp)
		return err
	}

	backup := filepath.Join(dir, fmt.Sprintf(".%s-%s.bak", bt.name, uuid.NewString()))

	if _, err := os.Stat(bt.file); err == nil {
		if err := os.Rename(bt.file, backup); err != nil {
			os.Remove(tmp)
			return err
		}
	}

	if err := os.Rename(tmp, bt.file); err != nil {
		return err
	}

	os.Remove(backup)

	bt.metrics.checkpoints.Inc()

	return nil
}

// writeSnapshot dumps the element count and every tuple of the current
// snapshot to the given path, buffered and fsynced
func (bt *BTree[K, V]) writeSnapshot(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriterSize(file, bt.writeBufferSize)

	var header [8]byte
	binary.BigEndian.PutUint64(header[:], uint64(bt.nbElems.Load()))
	if _, err := writer.Write(header[:]); err != nil {
		return err
	}

	cursor := bt.browse()
	defer cursor.Close()

	for {
		tuple, ok := cursor.Next()
		if !ok {
			break
		}

		keyBytes, err := bt.keySerializer.Serialize(tuple.Key)
		if err != nil {
			return err
		}
		if _, err := writer.Write(keyBytes); err != nil {
			return err
		}

		valueBytes, err := bt.valueSerializer.Serialize(tuple.Value)
		if err != nil {
			return err
		}
		if _, err := writer.Write(valueBytes); err != nil {
			return err
		}
	}

	if err := writer.Flush(); err != nil {
		return err
	}

	// Flush to the disk for real
	return file.Sync()
}
