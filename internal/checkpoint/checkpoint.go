// Package checkpoint persists the identifier of the most recently
// observed inbound message across poll cycles.
package checkpoint

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Store holds the checkpoint in a single JSON file of the form
// {"last_id": "..."}.  A single writer is assumed.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

type record struct {
	LastID string `json:"last_id"`
}

// Load returns the last-seen message identifier, or "" when the
// checkpoint file is absent or unreadable.  An unreadable file is
// deliberately not an error: the pipeline then treats every listed
// message as new, which is the accepted bootstrap and crash-recovery
// behavior.
func (s *Store) Load() string {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", s.path).Msg("checkpoint unreadable, treating all messages as new")
		}
		return ""
	}
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("checkpoint corrupt, treating all messages as new")
		return ""
	}
	return r.LastID
}

// Save durably records id as the new last-seen identifier,
// overwriting any prior value.  The write goes through a temporary
// file and rename so a crash mid-write leaves the old checkpoint
// intact rather than a truncated file.
func (s *Store) Save(id string) error {
	data, err := json.Marshal(record{LastID: id})
	if err != nil {
		return errors.Wrap(err, "encoding checkpoint")
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return errors.Wrapf(err, "writing checkpoint %q", tmp)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrapf(err, "replacing checkpoint %q", s.path)
	}
	return nil
}
