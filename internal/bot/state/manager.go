package state

import (
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// User states constants
const (
	None               = "none"
	WaitingForServings = "waiting_for_servings"
)

// Temp data keys
const (
	KeyRecordID = "record_id"
)

// StateManager keeps per-chat conversation state between updates
type StateManager interface {
	SetUserState(userID int64, state string)
	GetUserState(userID int64) string
	ClearUserState(userID int64)
	SetTempData(userID int64, key string, value interface{})
	GetTempData(userID int64, key string) (interface{}, bool)
	ClearTempData(userID int64)
}

// stateTTL expires abandoned conversations
const stateTTL = 24 * time.Hour

// Manager keeps user states and temporary data in process memory with the
// same expiry as the Redis manager
type Manager struct {
	states *cache.Cache
	temp   *cache.Cache
	mu     sync.Mutex // serializes temp data updates
}

// NewManager creates a new state manager
func NewManager() *Manager {
	return &Manager{
		states: cache.New(stateTTL, time.Hour),
		temp:   cache.New(stateTTL, time.Hour),
	}
}

func cacheKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// SetUserState sets the state for a user
func (m *Manager) SetUserState(userID int64, state string) {
	m.states.Set(cacheKey(userID), state, cache.DefaultExpiration)
}

// GetUserState gets the state for a user
func (m *Manager) GetUserState(userID int64) string {
	if v, ok := m.states.Get(cacheKey(userID)); ok {
		return v.(string)
	}
	return None
}

// ClearUserState clears the state for a user
func (m *Manager) ClearUserState(userID int64) {
	m.states.Delete(cacheKey(userID))
}

// SetTempData sets temporary data for a user. Stored maps are replaced, never
// modified, so readers need no lock.
func (m *Manager) SetTempData(userID int64, key string, value interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := make(map[string]interface{})
	if v, ok := m.temp.Get(cacheKey(userID)); ok {
		for k, old := range v.(map[string]interface{}) {
			next[k] = old
		}
	}
	next[key] = value
	m.temp.Set(cacheKey(userID), next, cache.DefaultExpiration)
}

// GetTempData gets temporary data for a user
func (m *Manager) GetTempData(userID int64, key string) (interface{}, bool) {
	v, ok := m.temp.Get(cacheKey(userID))
	if !ok {
		return nil, false
	}
	value, exists := v.(map[string]interface{})[key]
	return value, exists
}

// ClearTempData clears all temporary data for a user
func (m *Manager) ClearTempData(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.temp.Delete(cacheKey(userID))
}

// RecordID reads the record id stored under KeyRecordID. Values that went
// through a JSON round trip come back as float64.
func RecordID(m StateManager, userID int64) (uint, bool) {
	v, ok := m.GetTempData(userID, KeyRecordID)
	if !ok {
		return 0, false
	}
	switch id := v.(type) {
	case uint:
		return id, true
	case float64:
		if id <= 0 || id != float64(uint(id)) {
			return 0, false
		}
		return uint(id), true
	default:
		return 0, false
	}
}
