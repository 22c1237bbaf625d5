package trim

import (
	"path/filepath"

	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/aero"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/errors"
)

// Setup is the loaded input of a trim run: the scene, the aircraft to trim
// and its initial flight state.
type Setup struct {
	SceneFile string
	Scene     *aero.SceneConfig
	Name      string
	Aircraft  *aero.Aircraft
	State     aero.State
}

// LoadSetup reads a scene file and the aircraft file it references for name.
// The aircraft path is resolved relative to the scene file.
func LoadSetup(scenePath, name string) (*Setup, error) {
	scene, err := aero.LoadScene(scenePath)
	if err != nil {
		return nil, err
	}

	entry, ok := scene.Scene.Aircraft[name]
	if !ok {
		return nil, errors.Errorf("aircraft %q is not in scene %s", name, scenePath).
			WithOperation("load_setup").
			WithComponent(component)
	}

	path := entry.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(filepath.Dir(scenePath), path)
	}
	ac, err := aero.LoadAircraft(path)
	if err != nil {
		return nil, errors.Wrapf(err, "aircraft %q", name).
			WithOperation("load_setup").
			WithComponent(component)
	}

	return &Setup{
		SceneFile: scenePath,
		Scene:     scene,
		Name:      name,
		Aircraft:  ac,
		State:     entry.State,
	}, nil
}
