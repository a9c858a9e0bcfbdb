package filtertext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type memPersister struct {
	text   string
	writes int
}

func (m *memPersister) SetFilterText(text string) {
	m.text = text
	m.writes++
}

func (m *memPersister) FilterText() string {
	return m.text
}

func TestStore(t *testing.T) {
	s := New(nil)
	assert.Equal(t, "", s.FilterText())
	assert.True(t, s.SetFilterText("a.com"))
	assert.Equal(t, "a.com", s.FilterText())
	assert.False(t, s.SetFilterText("a.com"))
}

func TestStorePersist(t *testing.T) {
	p := &memPersister{text: "google"}
	s := New(p)
	assert.Equal(t, "google", s.FilterText())

	s.SetFilterText("google")
	assert.Equal(t, 0, p.writes)

	s.SetFilterText("")
	assert.Equal(t, 1, p.writes)
	assert.Equal(t, "", p.text)
	assert.Equal(t, "", New(p).FilterText())
}
