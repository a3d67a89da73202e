package predictor

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const snapshotVersion = 1

type snapshot struct {
	Version int
	SavedAt time.Time
	Index   *index
}

// writeSnapshotFile replaces path with data through a temporary file so
// readers never see a partial snapshot.
var writeSnapshotFile = func(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// SaveSnapshot encodes the index under the read lock. The file is written
// after the lock is released; concurrent saves are serialized.
func (p *Predictor) SaveSnapshot() error {
	path := p.config.SnapshotPath
	if path == "" {
		return nil
	}

	var buf bytes.Buffer
	p.mu.RLock()
	err := gob.NewEncoder(&buf).Encode(snapshot{Version: snapshotVersion, SavedAt: p.now(), Index: p.idx})
	p.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	p.snapshotMu.Lock()
	defer p.snapshotMu.Unlock()
	return writeSnapshotFile(path, buf.Bytes())
}

func loadSnapshot(path string) (*index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var snap snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}

	idx := snap.Index
	if idx == nil {
		return nil, fmt.Errorf("snapshot has no index")
	}
	// gob drops empty maps and zero structs
	if idx.Phrases == nil {
		idx.Phrases = newTrie()
	}
	if idx.Phrases.Root == nil {
		idx.Phrases.Root = &trieNode{}
	}
	if idx.Meta == nil {
		idx.Meta = make(map[string]entry)
	}
	if idx.Next == nil {
		idx.Next = make(map[string]map[string]int)
	}
	if idx.Phrases.Size != len(idx.Meta) {
		return nil, fmt.Errorf("snapshot is inconsistent: %d phrases, %d entries", idx.Phrases.Size, len(idx.Meta))
	}
	return idx, nil
}
