package naming

import (
	"path/filepath"

	"github.com/google/uuid"
)

const (
	DefaultPrefix = "sst-"
	DefaultExt    = ".png"
)

// Generator builds output paths of the form <Dir>/<Prefix><id><Ext>.
// Uniqueness is probabilistic: ids are random version 4 UUIDs.
type Generator struct {
	Dir    string
	Prefix string
	Ext    string
	NewID  func() string
}

func New(dir string) *Generator {
	return &Generator{
		Dir:    dir,
		Prefix: DefaultPrefix,
		Ext:    DefaultExt,
		NewID:  uuid.NewString,
	}
}

func (g *Generator) Next() string {
	newID := g.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return filepath.Join(g.Dir, g.Prefix+newID()+g.Ext)
}
