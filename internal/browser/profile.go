package browser

import (
	"fmt"

	"github.com/lance13c/stateshot/internal/config"
)

const (
	defaultWidth  = 1280
	defaultHeight = 1024
)

// Profile is one configured browser: the id suites filter on plus how to
// launch and emulate it
type Profile struct {
	ID        string
	Width     int
	Height    int
	Headless  bool
	UserAgent string
	Mobile    bool
	Touch     bool
	Scale     float64
	ExecPath  string
	Remote    string
}

// ProfilesFromConfig builds a profile for every configured browser
func ProfilesFromConfig(cfg *config.Config) (map[string]Profile, error) {
	profiles := make(map[string]Profile, len(cfg.Browsers))
	for _, id := range cfg.BrowserIDs() {
		b := cfg.Browsers[id]
		p := Profile{
			ID:        id,
			Width:     defaultWidth,
			Height:    defaultHeight,
			Headless:  b.IsHeadless(),
			UserAgent: b.UserAgent,
			Mobile:    b.Mobile,
			Touch:     b.Touch || b.Mobile,
			Scale:     b.Scale,
			ExecPath:  b.ExecPath,
			Remote:    b.Remote,
		}
		if b.WindowSize != "" {
			w, h, err := config.ParseWindowSize(b.WindowSize)
			if err != nil {
				return nil, fmt.Errorf("browser %s: %w", id, err)
			}
			p.Width, p.Height = w, h
		}
		if p.Scale == 0 {
			p.Scale = 1
		}
		profiles[id] = p
	}
	return profiles, nil
}

// Landscape reports whether the profile starts wider than tall
func (p Profile) Landscape() bool {
	return p.Width > p.Height
}
