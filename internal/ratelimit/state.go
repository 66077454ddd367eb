package ratelimit

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
)

// persistedState is the JSON document holding blocks and suspicious
// IPs across process restarts. Expired entries are dropped at load.
type persistedState struct {
	BlockedUsers  map[string]*blockInfo `json:"blocked_users"`
	SuspiciousIPs map[string]ipMark     `json:"suspicious_ips"`
	LastSaved     int64                 `json:"last_saved"`
}

type stateManager struct {
	filePath string
	mu       sync.Mutex
}

func newStateManager(filePath string) *stateManager {
	return &stateManager{filePath: filePath}
}

func (m *stateManager) Load() (persistedState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fresh := persistedState{
		BlockedUsers:  make(map[string]*blockInfo),
		SuspiciousIPs: make(map[string]ipMark),
	}

	data, err := os.ReadFile(m.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("file", m.filePath).Msg("Rate limiter state file not found, starting fresh.")
			return fresh, nil
		}
		log.Error().Err(err).Str("file", m.filePath).Msg("Failed to read rate limiter state file")
		return fresh, err
	}
	if len(data) == 0 {
		log.Warn().Str("file", m.filePath).Msg("Rate limiter state file is empty, starting fresh.")
		return fresh, nil
	}

	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		log.Error().Err(err).Str("file", m.filePath).Msg("Failed to unmarshal rate limiter state")
		return fresh, err
	}
	if state.BlockedUsers == nil {
		state.BlockedUsers = make(map[string]*blockInfo)
	}
	if state.SuspiciousIPs == nil {
		state.SuspiciousIPs = make(map[string]ipMark)
	}
	log.Debug().Str("file", m.filePath).
		Int("blocked_users", len(state.BlockedUsers)).
		Int("suspicious_ips", len(state.SuspiciousIPs)).
		Msg("Loaded rate limiter state")
	return state, nil
}

func (m *stateManager) Save(state persistedState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal rate limiter state")
		return err
	}

	tempFilePath := m.filePath + ".tmp"
	if err := os.WriteFile(tempFilePath, data, 0o644); err != nil {
		log.Error().Err(err).Str("file", tempFilePath).Msg("Failed to write temporary state file")
		return err
	}
	if err := os.Rename(tempFilePath, m.filePath); err != nil {
		log.Error().Err(err).Str("from", tempFilePath).Str("to", m.filePath).Msg("Failed to rename state file")
		_ = os.Remove(tempFilePath)
		return err
	}
	return nil
}
