package narrative

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"sync"
	"text/template"
)

//go:embed profiles
var profileFS embed.FS

// DefaultVersion is the profile used when none is configured.
const DefaultVersion = "pt-BR/v1"

// Profile couples a prompt template with the marker set written against
// its wording. Both change together, so they are versioned together.
type Profile struct {
	Version    string
	Markers    MarkerSet
	system     *template.Template
	user       *template.Template
	structured *template.Template
}

// WithMarkers returns a copy of the profile that parses with m.
func (p *Profile) WithMarkers(m MarkerSet) *Profile {
	cp := *p
	cp.Markers = m
	return &cp
}

func loadProfileDir(fsys fs.FS, dir string) (*Profile, error) {
	raw, err := fs.ReadFile(fsys, path.Join(dir, "markers.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to read markers for %s: %w", dir, err)
	}
	markers, err := ParseMarkerSet(raw)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", dir, err)
	}

	parse := func(name string) (*template.Template, error) {
		t, err := template.ParseFS(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s/%s: %w", dir, name, err)
		}
		return t, nil
	}

	p := &Profile{Version: markers.Version, Markers: markers}
	if p.system, err = parse("system.tmpl"); err != nil {
		return nil, err
	}
	if p.user, err = parse("user.tmpl"); err != nil {
		return nil, err
	}
	if p.structured, err = parse("structured.tmpl"); err != nil {
		return nil, err
	}
	return p, nil
}

var loadProfiles = sync.OnceValues(func() (map[string]*Profile, error) {
	entries, err := fs.ReadDir(profileFS, "profiles")
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}

	out := make(map[string]*Profile, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		p, err := loadProfileDir(profileFS, path.Join("profiles", e.Name()))
		if err != nil {
			return nil, err
		}
		out[p.Version] = p
	}
	return out, nil
})

// LoadProfile returns the built-in profile for version.
func LoadProfile(version string) (*Profile, error) {
	profiles, err := loadProfiles()
	if err != nil {
		return nil, err
	}
	p, ok := profiles[version]
	if !ok {
		return nil, fmt.Errorf("unknown narrative profile %q", version)
	}
	return p, nil
}

// Versions lists the built-in profile versions.
func Versions() ([]string, error) {
	profiles, err := loadProfiles()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(profiles))
	for v := range profiles {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}
