// Package screens registers the built-in screen definitions with the core
// registry. Import this package to ensure all screens are registered.
package screens

import (
	"embed"
	"fmt"
	"io/fs"
	"path"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/casegrid/internal/core"
)

//go:embed *.yaml
var definitions embed.FS

func init() {
	screens, err := Load(definitions)
	if err != nil {
		panic(err)
	}
	for _, s := range screens {
		core.Register(s)
	}
}

// Load decodes every *.yaml file at the root of fsys. Unknown fields are
// rejected so a typo in a column key fails loudly.
func Load(fsys fs.FS) ([]core.Screen, error) {
	names, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return nil, err
	}
	screens := make([]core.Screen, 0, len(names))
	for _, name := range names {
		f, err := fsys.Open(name)
		if err != nil {
			return nil, err
		}
		var s core.Screen
		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		err = dec.Decode(&s)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("screen %s: %w", path.Base(name), err)
		}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		screens = append(screens, s)
	}
	return screens, nil
}
