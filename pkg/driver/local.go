package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/pagerunner/pkg/capabilities"
	"github.com/entrhq/pagerunner/pkg/logging"
	"github.com/entrhq/pagerunner/pkg/page"
	"github.com/entrhq/pagerunner/pkg/session"
)

// Default values of local browser sessions.
const (
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
	DefaultActionTimeout  = 30000.0 // milliseconds
)

// edgeOptionsKey is the Edge counterpart of goog:chromeOptions.
const edgeOptionsKey = "ms:edgeOptions"

// Viewport is the browser viewport size.
type Viewport struct {
	Width  int
	Height int
}

// LocalOptions configures NewLocal.
type LocalOptions struct {
	// SkipInstall skips the Playwright driver and browser installation.
	SkipInstall bool
	// Timeout is the default action timeout in milliseconds.
	Timeout float64
	Log     Logger
}

// LaunchPlan is how a capability map translates to a Playwright launch.
type LaunchPlan struct {
	Engine   string // chromium, firefox or webkit
	Channel  string
	Headless bool
	Viewport Viewport
	Args     []string
}

// PlanLaunch derives the Playwright launch from the browser options of
// caps. Headless and window-size arguments become launch settings; the
// other arguments are passed to the browser.
func PlanLaunch(caps capabilities.Map) (LaunchPlan, error) {
	opts := caps.BrowserOptions()
	plan := LaunchPlan{Viewport: Viewport{Width: DefaultViewportWidth, Height: DefaultViewportHeight}}

	var args []string
	switch opts.BrowserName() {
	case session.BrowserChrome:
		plan.Engine, plan.Channel = "chromium", "chrome"
		args = opts.Args(capabilities.KeyChromeOptions)
	case session.BrowserEdge:
		plan.Engine, plan.Channel = "chromium", "msedge"
		args = opts.Args(edgeOptionsKey)
	case session.BrowserFirefox:
		plan.Engine = "firefox"
		args = opts.Args(capabilities.KeyFirefoxOptions)
	case session.BrowserSafari:
		plan.Engine = "webkit"
	default:
		return LaunchPlan{}, fmt.Errorf("%w: the browser %q is not supported for local runs", session.ErrUnsupportedBrowser, opts.BrowserName())
	}

	for _, a := range args {
		switch {
		case a == "--headless" || a == "-headless" || strings.HasPrefix(a, "--headless="):
			plan.Headless = true
		case strings.HasPrefix(strings.TrimLeft(a, "-"), "window-size="):
			v, ok := parseWindowSize(strings.TrimPrefix(strings.TrimLeft(a, "-"), "window-size="))
			if !ok {
				return LaunchPlan{}, session.InvalidArgumentf("invalid browser argument %q", a)
			}
			plan.Viewport = v
		default:
			plan.Args = append(plan.Args, a)
		}
	}
	return plan, nil
}

// parseWindowSize accepts WxH and W,H.
func parseWindowSize(s string) (Viewport, bool) {
	w, h, ok := strings.Cut(s, "x")
	if !ok {
		w, h, ok = strings.Cut(s, ",")
	}
	if !ok {
		return Viewport{}, false
	}
	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil || width <= 0 {
		return Viewport{}, false
	}
	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil || height <= 0 {
		return Viewport{}, false
	}
	return Viewport{Width: width, Height: height}, true
}

// Local is a Playwright browser session.
type Local struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	log     Logger
}

// NewLocal installs (unless skipped) and launches the browser of caps.
func NewLocal(ctx context.Context, caps capabilities.Map, opts LocalOptions) (*Local, error) {
	plan, err := PlanLaunch(caps)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.Log == nil {
		opts.Log = logging.Nop()
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultActionTimeout
	}

	runOpts := &playwright.RunOptions{
		Browsers: []string{plan.Engine},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}
	if !opts.SkipInstall {
		if err := playwright.Install(runOpts); err != nil {
			return nil, fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(plan.Headless),
		Args:     plan.Args,
	}
	if plan.Channel != "" {
		launchOpts.Channel = playwright.String(plan.Channel)
	}

	var browserType playwright.BrowserType
	switch plan.Engine {
	case "firefox":
		browserType = pw.Firefox
	case "webkit":
		browserType = pw.WebKit
	default:
		browserType = pw.Chromium
	}

	browser, err := browserType.Launch(launchOpts)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  plan.Viewport.Width,
			Height: plan.Viewport.Height,
		},
	})
	if err != nil {
		browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	p, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	p.SetDefaultTimeout(opts.Timeout)

	opts.Log.Debugf("Launched %s (channel %q, headless %t, viewport %dx%d).",
		plan.Engine, plan.Channel, plan.Headless, plan.Viewport.Width, plan.Viewport.Height)

	return &Local{pw: pw, browser: browser, context: bctx, page: p, log: opts.Log}, nil
}

// Navigate opens url.
func (l *Local) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := l.page.Goto(url); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// Find returns the first element matching loc.
func (l *Local) Find(ctx context.Context, loc page.Locator) (page.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sel, err := Selector(loc)
	if err != nil {
		return nil, err
	}
	pl := l.page.Locator(sel).First()
	n, err := pl.Count()
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", loc, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("find %s: %w", loc, ErrNoSuchElement)
	}
	return &localElement{loc: pl}, nil
}

// WaitFor waits until the element of loc reaches state.
func (l *Local) WaitFor(ctx context.Context, loc page.Locator, state page.State, timeout time.Duration) (page.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sel, err := Selector(loc)
	if err != nil {
		return nil, err
	}
	pl := l.page.Locator(sel).First()

	st := playwright.WaitForSelectorState(state)
	ms := float64(timeout.Milliseconds())
	if err := pl.WaitFor(playwright.LocatorWaitForOptions{State: &st, Timeout: &ms}); err != nil {
		if errors.Is(err, playwright.ErrTimeout) {
			return nil, fmt.Errorf("wait for %s to be %s: %w", loc, state, ErrNoSuchElement)
		}
		return nil, fmt.Errorf("wait for %s: %w", loc, err)
	}
	if state == page.StateDetached || state == page.StateHidden {
		return nil, nil
	}
	return &localElement{loc: pl}, nil
}

// Quit closes the page, context and browser and stops Playwright.
func (l *Local) Quit() error {
	_ = l.page.Close()
	_ = l.context.Close()
	_ = l.browser.Close()
	if err := l.pw.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	return nil
}

type localElement struct {
	loc playwright.Locator
}

func (e *localElement) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.loc.Click(); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	return nil
}

func (e *localElement) Fill(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.loc.Fill(value); err != nil {
		return fmt.Errorf("fill failed: %w", err)
	}
	return nil
}

func (e *localElement) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return e.loc.TextContent()
}

func (e *localElement) Visible(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return e.loc.IsVisible()
}

// Selector translates a locator to a Playwright selector. Mobile and
// Flutter strategies have no browser equivalent.
func Selector(l page.Locator) (string, error) {
	switch l.By {
	case page.ByID:
		return fmt.Sprintf("[id=%q]", l.Selector), nil
	case page.ByName:
		return fmt.Sprintf("[name=%q]", l.Selector), nil
	case page.ByCSS:
		return "css=" + l.Selector, nil
	case page.ByXPath:
		return "xpath=" + l.Selector, nil
	case page.ByClassName:
		return "css=." + l.Selector, nil
	case page.ByTagName:
		return "css=" + l.Selector, nil
	case page.ByLinkText:
		return fmt.Sprintf("xpath=//a[normalize-space(.)=%s]", xpathLiteral(l.Selector)), nil
	case page.ByPartialLinkText:
		return fmt.Sprintf("xpath=//a[contains(., %s)]", xpathLiteral(l.Selector)), nil
	}
	return "", fmt.Errorf("locator strategy %q is not supported by the local browser driver", l.By)
}

func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	parts := strings.Split(s, `"`)
	return `concat("` + strings.Join(parts, `", '"', "`) + `")`
}
