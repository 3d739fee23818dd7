// Package browser implements the scheduler's Driver on top of Chrome via
// chromedp, plus a static HTML driver for dry runs.
package browser

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sync"

	"github.com/chromedp/chromedp"

	"github.com/lance13c/stateshot/internal/logging"
	"github.com/lance13c/stateshot/internal/scheduler"
)

// findChrome attempts to find Chrome executable
func findChrome() (string, error) {
	var paths []string

	switch runtime.GOOS {
	case "darwin":
		paths = []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"/Applications/Google Chrome Canary.app/Contents/MacOS/Google Chrome Canary",
			"/Applications/Brave Browser.app/Contents/MacOS/Brave Browser",
		}
	case "linux":
		paths = []string{
			"google-chrome",
			"google-chrome-stable",
			"chromium",
			"chromium-browser",
		}
	case "windows":
		paths = []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files\Chromium\Application\chrome.exe`,
		}
	}

	for _, path := range paths {
		if runtime.GOOS == "darwin" {
			if _, err := os.Stat(path); err == nil {
				logging.Debug("Found Chrome at: %s", path)
				return path, nil
			}
		} else {
			if found, err := exec.LookPath(path); err == nil {
				logging.Debug("Found Chrome at: %s", found)
				return found, nil
			}
		}
	}

	if path, err := exec.LookPath("chrome"); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("Chrome browser not found. Please install Chrome, Chromium, or Brave, or set exec_path")
}

// chromeInstance is one running browser process shared by all sessions of
// a profile
type chromeInstance struct {
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
}

// ChromeDriver opens sessions in Chrome, one browser process per profile
// and one tab per session
type ChromeDriver struct {
	profiles map[string]Profile

	mu        sync.Mutex
	instances map[string]*chromeInstance
}

// NewChromeDriver creates a driver for the given profiles. Browsers are
// started lazily on the first Open.
func NewChromeDriver(profiles map[string]Profile) *ChromeDriver {
	return &ChromeDriver{
		profiles:  profiles,
		instances: make(map[string]*chromeInstance),
	}
}

func (d *ChromeDriver) instance(ctx context.Context, p Profile) (*chromeInstance, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if inst, ok := d.instances[p.ID]; ok {
		select {
		case <-inst.ctx.Done():
			logging.Debug("Previous %s instance was closed, creating new one", p.ID)
			delete(d.instances, p.ID)
		default:
			return inst, nil
		}
	}

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if p.Remote != "" {
		product, err := ProbeRemote(ctx, p.Remote)
		if err != nil {
			return nil, fmt.Errorf("remote browser %s: %w", p.ID, err)
		}
		logging.Info("Using remote browser %s for %s", product, p.ID)
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), p.Remote)
	} else {
		chromePath := p.ExecPath
		if chromePath == "" {
			var err error
			if chromePath, err = findChrome(); err != nil {
				return nil, err
			}
		}
		logging.Info("Using Chrome from: %s", chromePath)

		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.ExecPath(chromePath),
			chromedp.WindowSize(p.Width, p.Height),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.Flag("hide-scrollbars", true),
			chromedp.Flag("force-device-scale-factor", fmt.Sprintf("%g", p.Scale)),
		)
		if !p.Headless {
			logging.Info("Chrome will run in visible mode for %s", p.ID)
			opts = append(opts, chromedp.Flag("headless", false))
		}
		if p.UserAgent != "" {
			opts = append(opts, chromedp.UserAgent(p.UserAgent))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}

	browserCtx, cancel := chromedp.NewContext(
		allocCtx,
		chromedp.WithLogf(func(format string, v ...interface{}) {
			logging.Debug("[Chrome "+p.ID+"] "+format, v...)
		}),
	)
	// Start Chrome with the browser context itself; a timeout context
	// here would cancel the whole instance when it expires
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start Chrome for %s: %w", p.ID, err)
	}

	inst := &chromeInstance{allocCancel: allocCancel, ctx: browserCtx, cancel: cancel}
	d.instances[p.ID] = inst
	return inst, nil
}

// Open starts a new tab emulating the profile
func (d *ChromeDriver) Open(ctx context.Context, browserID string) (scheduler.Session, error) {
	p, ok := d.profiles[browserID]
	if !ok {
		return nil, fmt.Errorf("unknown browser %q", browserID)
	}
	inst, err := d.instance(ctx, p)
	if err != nil {
		return nil, err
	}

	tabCtx, cancel := chromedp.NewContext(inst.ctx)
	s := &chromeSession{
		profile:   p,
		ctx:       tabCtx,
		cancel:    cancel,
		width:     p.Width,
		height:    p.Height,
		landscape: p.Landscape(),
	}
	// allocate the tab on its own context so per-call deadlines never close it
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("opening %s tab: %w", browserID, err)
	}
	if err := s.run(ctx, s.emulate()); err != nil {
		cancel()
		return nil, fmt.Errorf("emulating %s: %w", browserID, err)
	}
	logging.Debug("Opened %s tab (%dx%d, scale %g, mobile %v)", browserID, p.Width, p.Height, p.Scale, p.Mobile)
	return s, nil
}

// Close shuts down every browser the driver started
func (d *ChromeDriver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, inst := range d.instances {
		inst.cancel()
		inst.allocCancel()
		delete(d.instances, id)
	}
}
