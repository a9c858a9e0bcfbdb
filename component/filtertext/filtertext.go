package filtertext

import (
	"go.uber.org/atomic"
)

// Persister keeps the filter text across restarts
type Persister interface {
	SetFilterText(text string)
	FilterText() string
}

// Store holds the rule filter text typed by the user
type Store struct {
	text    *atomic.String
	persist Persister
}

// New restores the last text from p, p may be nil
func New(p Persister) *Store {
	s := &Store{
		text:    atomic.NewString(""),
		persist: p,
	}
	if p != nil {
		s.text.Store(p.FilterText())
	}
	return s
}

func (s *Store) FilterText() string {
	return s.text.Load()
}

// SetFilterText reports whether the stored value changed
func (s *Store) SetFilterText(text string) bool {
	if s.text.Load() == text {
		return false
	}
	s.text.Store(text)
	if s.persist != nil {
		s.persist.SetFilterText(text)
	}
	return true
}
