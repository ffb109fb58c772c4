package prefs

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// PanelPref holds the persisted display state of one console panel
type PanelPref struct {
	Collapsed bool     `json:"collapsed"`
	Height    *float64 `json:"height"`
}

// Layout is a flat mapping from panel id to its preferences
type Layout map[string]PanelPref

// Defaults returns the built-in panel layout
func Defaults() Layout {
	return Layout{
		"office":   {Collapsed: false, Height: nil},
		"timeline": {Collapsed: false, Height: floatPtr(240)},
		"metrics":  {Collapsed: false, Height: floatPtr(160)},
		"agents":   {Collapsed: false, Height: nil},
		"tokens":   {Collapsed: true, Height: floatPtr(200)},
	}
}

// FileStore persists the layout blob as a JSON file. A corrupt or missing
// file silently falls back to defaults.
type FileStore struct {
	path   string
	mu     sync.Mutex
	logger zerolog.Logger
}

// NewFileStore creates a layout store at the given path
func NewFileStore(path string, logger zerolog.Logger) *FileStore {
	return &FileStore{
		path:   path,
		logger: logger.With().Str("component", "prefs").Logger(),
	}
}

// Load reads the stored layout merged over the defaults
func (s *FileStore) Load() Layout {
	s.mu.Lock()
	defer s.mu.Unlock()

	layout := Defaults()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return layout
	}

	var stored Layout
	if err := json.Unmarshal(data, &stored); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("corrupt layout preferences, using defaults")
		return layout
	}

	for id, pref := range stored {
		layout[id] = pref
	}
	return layout
}

// Save writes the layout to disk
func (s *FileStore) Save(layout Layout) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(layout, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}

func floatPtr(v float64) *float64 { return &v }
