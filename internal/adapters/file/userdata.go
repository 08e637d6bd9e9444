package file

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// UserData persists small operator settings across console runs, currently
// the region→keyfile mapping for generated key pairs.
type UserData struct {
	path string
}

// userDataDoc is the on-disk shape of the settings file.
type userDataDoc struct {
	KeyMapping map[string]string `yaml:"key_mapping,omitempty"`
}

// NewUserData creates a settings store at the given path.
func NewUserData(path string) *UserData {
	return &UserData{path: path}
}

// KeyMapping returns the persisted `region#keyname` → key file path mapping.
// A missing file yields an empty mapping.
func (u *UserData) KeyMapping() (map[string]string, error) {
	doc, err := u.load()
	if err != nil {
		return nil, err
	}
	if doc.KeyMapping == nil {
		return map[string]string{}, nil
	}
	return doc.KeyMapping, nil
}

// SetKeyMapping replaces the persisted key mapping.
func (u *UserData) SetKeyMapping(mapping map[string]string) error {
	doc, err := u.load()
	if err != nil {
		return err
	}
	doc.KeyMapping = mapping
	return u.save(doc)
}

func (u *UserData) load() (*userDataDoc, error) {
	var doc userDataDoc
	data, err := os.ReadFile(u.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &doc, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (u *UserData) save(doc *userDataDoc) error {
	if err := os.MkdirAll(filepath.Dir(u.path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(u.path, data, 0o600)
}
