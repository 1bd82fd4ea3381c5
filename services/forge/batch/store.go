// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package batch

import (
	"encoding/json"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
)

const resultPrefix = "result/"

// Store archives batch outcomes on disk so interrupted runs can be
// resumed and finished runs inspected later.
//
// Thread Safety: Store is safe for concurrent use.
type Store struct {
	db *badger.DB
}

// OpenStore opens or creates the result archive at path.
func OpenStore(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open result store at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the archive.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put archives one outcome under its task ID, overwriting any previous
// attempt.
func (s *Store) Put(outcome *Outcome) error {
	data, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("failed to encode outcome for task %s: %w", outcome.TaskID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(resultPrefix+outcome.TaskID), data)
	})
	if err != nil {
		return fmt.Errorf("failed to store outcome for task %s: %w", outcome.TaskID, err)
	}
	return nil
}

// Get loads the archived outcome for one task. The bool reports
// presence.
func (s *Store) Get(taskID string) (*Outcome, bool, error) {
	var out Outcome
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(resultPrefix + taskID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load outcome for task %s: %w", taskID, err)
	}
	return &out, true, nil
}

// List returns the task IDs with archived outcomes.
func (s *Store) List() ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(resultPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, strings.TrimPrefix(string(it.Item().Key()), resultPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %w", err)
	}
	return ids, nil
}
