// Package conversation persists the mapping from CRM record
// identifier to AI conversation identifier, so follow-up mail from
// the same contact continues the same conversation context.
package conversation

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Store holds the whole mapping in a single JSON file.  Reads and
// writes are whole-file load-modify-save, which is fine at this
// volume with a single writer.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// load returns the persisted mapping.  An absent or corrupt file
// degrades to an empty mapping rather than an error.
func (s *Store) load() map[string]string {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", s.path).Msg("conversation map unreadable, starting empty")
		}
		return map[string]string{}
	}
	m := map[string]string{}
	if err := json.Unmarshal(data, &m); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("conversation map corrupt, starting empty")
		return map[string]string{}
	}
	return m
}

func (s *Store) save(m map[string]string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding conversation map")
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return errors.Wrapf(err, "writing conversation map %q", tmp)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrapf(err, "replacing conversation map %q", s.path)
	}
	return nil
}

// GetOrCreate returns the conversation identifier bound to contactID.
// When no binding exists, create is invoked to mint one, the binding
// is persisted, and the new identifier is returned.  An existing
// binding is never overwritten.  When create fails no binding is
// recorded, so a later message from the same contact retries it.
func (s *Store) GetOrCreate(contactID string, create func() (string, error)) (string, error) {
	m := s.load()
	if id, ok := m[contactID]; ok {
		return id, nil
	}

	id, err := create()
	if err != nil {
		return "", errors.Wrapf(err, "creating conversation for %v", contactID)
	}

	m[contactID] = id
	if err := s.save(m); err != nil {
		return "", err
	}
	log.Info().Str("contactId", contactID).Str("conversationId", id).Msg("bound new conversation")
	return id, nil
}
