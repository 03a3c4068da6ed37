package db

import (
	"fmt"
	"strings"
)

// Setting keys. These match the keys the web client keeps in localStorage.
const (
	KeyViewingSprintID = "viewing_sprint_id"
	KeySelectedTagIDs  = "selected_tag_ids"
	KeyCopyMode        = "copyMode"
)

// CopyMode controls how a task reference is copied to the clipboard
type CopyMode string

const (
	CopySqid CopyMode = "sqid"
	CopyPath CopyMode = "path"
	CopyTics CopyMode = "tics"
)

// CopyModes lists the modes in cycling order
var CopyModes = []CopyMode{CopySqid, CopyPath, CopyTics}

// Format renders a task reference for the mode
func (m CopyMode) Format(sqid string) string {
	switch m {
	case CopyPath:
		return "/task/" + sqid
	case CopyTics:
		return "`/task/" + sqid + "`"
	default:
		return "task:" + sqid
	}
}

// Next returns the mode after m
func (m CopyMode) Next() CopyMode {
	for i, mode := range CopyModes {
		if mode == m {
			return CopyModes[(i+1)%len(CopyModes)]
		}
	}
	return CopySqid
}

// Store is the key/value interface preferences are read through
type Store interface {
	GetSetting(key string) (string, error)
	SetSetting(key, value string) error
}

// Prefs reads and writes typed preferences on top of a Store
type Prefs struct {
	store Store
}

func NewPrefs(store Store) *Prefs {
	return &Prefs{store: store}
}

func (p *Prefs) ViewingSprintID() (string, error) {
	return p.store.GetSetting(KeyViewingSprintID)
}

func (p *Prefs) SetViewingSprintID(id string) error {
	if err := p.store.SetSetting(KeyViewingSprintID, id); err != nil {
		return fmt.Errorf("save %s: %w", KeyViewingSprintID, err)
	}
	return nil
}

// SelectedTagIDs returns the saved tag selection. The boolean is false
// when nothing was ever saved, which callers treat as "all tags".
func (p *Prefs) SelectedTagIDs() ([]string, bool, error) {
	raw, err := p.store.GetSetting(KeySelectedTagIDs)
	if err != nil {
		return nil, false, err
	}
	if raw == "" {
		return nil, false, nil
	}
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, true, nil
}

// SetSelectedTagIDs saves the selection comma-joined. An empty selection
// is stored as a lone comma so it is not mistaken for "never saved".
func (p *Prefs) SetSelectedTagIDs(ids []string) error {
	value := strings.Join(ids, ",")
	if value == "" {
		value = ","
	}
	if err := p.store.SetSetting(KeySelectedTagIDs, value); err != nil {
		return fmt.Errorf("save %s: %w", KeySelectedTagIDs, err)
	}
	return nil
}

// CopyMode returns the saved copy mode, defaulting to sqid
func (p *Prefs) CopyMode() CopyMode {
	raw, err := p.store.GetSetting(KeyCopyMode)
	if err != nil {
		return CopySqid
	}
	switch mode := CopyMode(raw); mode {
	case CopySqid, CopyPath, CopyTics:
		return mode
	}
	return CopySqid
}

func (p *Prefs) SetCopyMode(mode CopyMode) error {
	return p.store.SetSetting(KeyCopyMode, string(mode))
}
