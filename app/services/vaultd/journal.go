package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/ardanlabs/vaults/foundation/vault/state"
	"go.uber.org/zap"
)

// startJournal appends every receipt received on the channel to the file as
// one JSON document per line. The returned channel is closed once the
// receipt channel is closed and the file is flushed.
func startJournal(log *zap.SugaredLogger, path string, receipts <-chan state.Receipt) (<-chan struct{}, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})

	go func() {
		defer close(done)
		defer f.Close()

		enc := json.NewEncoder(f)
		for rcpt := range receipts {
			if err := enc.Encode(rcpt); err != nil {
				log.Errorw("journal", "status", "write receipt", "batch", rcpt.BatchID, "ERROR", err)
				continue
			}
			log.Infow("journal", "kind", rcpt.Kind, "vault", rcpt.Entry.ID, "batch", rcpt.BatchID)
		}

		if err := f.Sync(); err != nil {
			log.Errorw("journal", "status", "sync", "ERROR", err)
		}
	}()

	return done, nil
}
