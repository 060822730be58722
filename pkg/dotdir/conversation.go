package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/papercomputeco/opsdeck/pkg/llm"
)

const (
	conversationFile = "conversation.json"
)

// Conversation is the persisted state of the CLI's last chat exchange.
type Conversation struct {
	// ID is the backend conversation ID, when the backend assigned one.
	ID string `json:"id,omitempty"`

	// Messages is the exchange so far, oldest first.
	Messages []llm.Message `json:"messages"`
}

// LoadConversation loads the conversation from a target .opsdeck/conversation.json.
// Returns nil, nil if no conversation has been saved.
func (m *Manager) LoadConversation(overrideDir string) (*Conversation, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, conversationFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading conversation: %w", err)
	}

	conv := &Conversation{}
	if err := json.Unmarshal(data, conv); err != nil {
		return nil, fmt.Errorf("parsing conversation: %w", err)
	}

	return conv, nil
}

// SaveConversation persists the conversation to a target .opsdeck/conversation.json.
func (m *Manager) SaveConversation(conv *Conversation, overrideDir string) error {
	if conv == nil {
		return errors.New("cannot save nil conversation")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling conversation: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, conversationFile), data, 0o600); err != nil {
		return fmt.Errorf("writing conversation: %w", err)
	}

	return nil
}

// ClearConversation removes the conversation file so the next chat starts
// fresh. Returns nil if there is nothing to clear.
func (m *Manager) ClearConversation(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(dir, conversationFile)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing conversation: %w", err)
	}

	return nil
}
