// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package clientstore is the chat client's durable local state: placeholder
// records, the checkpoint registry, per-project drafts and cached
// transcripts.
package clientstore

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/wingedpig/clauderelay/internal/reconciler"
	"github.com/wingedpig/clauderelay/internal/transcript"
)

// Store is the client state. It implements reconciler.Store.
type Store struct {
	kv backend
}

var _ reconciler.Store = (*Store)(nil)

// Open opens or creates the bbolt database at path.
func Open(path string) (*Store, error) {
	b, err := openBolt(path)
	if err != nil {
		return nil, err
	}
	return &Store{kv: b}, nil
}

// NewMemory returns a store that keeps everything in memory.
func NewMemory() *Store {
	return &Store{kv: newMemBackend()}
}

// Close releases the database.
func (s *Store) Close() error {
	return s.kv.close()
}

func (s *Store) putJSON(bucket []byte, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", bucket, err)
	}
	return s.kv.put(bucket, []byte(key), data)
}

func (s *Store) getJSON(bucket []byte, key string, v interface{}) (bool, error) {
	data, err := s.kv.get(bucket, []byte(key))
	if err != nil || data == nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s %s: %w", bucket, key, err)
	}
	return true, nil
}

// SavePlaceholder records or updates a placeholder.
func (s *Store) SavePlaceholder(rec reconciler.PlaceholderRecord) error {
	return s.putJSON(bucketPlaceholders, rec.ID, rec)
}

// Placeholder returns the record for id.
func (s *Store) Placeholder(id string) (reconciler.PlaceholderRecord, bool, error) {
	var rec reconciler.PlaceholderRecord
	ok, err := s.getJSON(bucketPlaceholders, id, &rec)
	return rec, ok, err
}

// DeletePlaceholder removes the record for id.
func (s *Store) DeletePlaceholder(id string) error {
	return s.kv.del(bucketPlaceholders, []byte(id))
}

// Placeholders returns every record, oldest first.
func (s *Store) Placeholders() ([]reconciler.PlaceholderRecord, error) {
	var out []reconciler.PlaceholderRecord
	err := s.kv.scan(bucketPlaceholders, nil, func(_, v []byte) error {
		var rec reconciler.PlaceholderRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list placeholders: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func checkpointKey(project, key string) string {
	return project + "\x00" + key
}

// SaveCheckpoint registers a checkpoint under its content and timestamp key.
func (s *Store) SaveCheckpoint(cp transcript.Checkpoint) error {
	return s.putJSON(bucketCheckpoints, checkpointKey(cp.Project, cp.Key()), cp)
}

// Checkpoints returns the checkpoints of project, oldest first.
func (s *Store) Checkpoints(project string) ([]transcript.Checkpoint, error) {
	var out []transcript.Checkpoint
	err := s.kv.scan(bucketCheckpoints, []byte(checkpointKey(project, "")), func(_, v []byte) error {
		var cp transcript.Checkpoint
		if err := json.Unmarshal(v, &cp); err != nil {
			return err
		}
		out = append(out, cp)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// DeleteCheckpoint removes a checkpoint by id.
func (s *Store) DeleteCheckpoint(project, id string) error {
	cps, err := s.Checkpoints(project)
	if err != nil {
		return err
	}
	for _, cp := range cps {
		if cp.ID == id {
			return s.kv.del(bucketCheckpoints, []byte(checkpointKey(project, cp.Key())))
		}
	}
	return nil
}

// SaveDraft stores the unsent input of project. An empty draft is removed.
func (s *Store) SaveDraft(project, text string) error {
	if text == "" {
		return s.kv.del(bucketDrafts, []byte(project))
	}
	return s.kv.put(bucketDrafts, []byte(project), []byte(text))
}

// Draft returns the unsent input of project.
func (s *Store) Draft(project string) (string, error) {
	data, err := s.kv.get(bucketDrafts, []byte(project))
	return string(data), err
}

// SaveTranscript caches the transcript last shown for project.
func (s *Store) SaveTranscript(project string, entries []transcript.Entry) error {
	data, err := transcript.MarshalEntries(entries)
	if err != nil {
		return err
	}
	return s.kv.put(bucketTranscripts, []byte(project), data)
}

// Transcript returns the cached transcript of project, or nil.
func (s *Store) Transcript(project string) ([]transcript.Entry, error) {
	data, err := s.kv.get(bucketTranscripts, []byte(project))
	if err != nil || data == nil {
		return nil, err
	}
	return transcript.UnmarshalEntries(data)
}
