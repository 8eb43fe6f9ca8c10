package page

import (
	"context"
	"fmt"
	"slices"
	"time"
)

// Strategy is an element location strategy.
type Strategy string

const (
	ByID              Strategy = "id"
	ByXPath           Strategy = "xpath"
	ByCSS             Strategy = "css selector"
	ByName            Strategy = "name"
	ByClassName       Strategy = "class name"
	ByTagName         Strategy = "tag name"
	ByLinkText        Strategy = "link text"
	ByPartialLinkText Strategy = "partial link text"

	ByAccessibilityID    Strategy = "accessibility id"
	ByAndroidUIAutomator Strategy = "-android uiautomator"
	ByIOSPredicate       Strategy = "-ios predicate string"
	ByIOSClassChain      Strategy = "-ios class chain"

	ByFlutterText           Strategy = "text"
	ByFlutterTooltip        Strategy = "tooltip"
	ByFlutterAncestor       Strategy = "ancestor"
	ByFlutterDescendant     Strategy = "descendant"
	ByFlutterSemanticsLabel Strategy = "semantics_label"
	ByFlutterType           Strategy = "type"
	ByFlutterValueKey       Strategy = "value_key"
)

var strategies = []Strategy{
	ByID, ByXPath, ByCSS, ByName, ByClassName, ByTagName, ByLinkText, ByPartialLinkText,
	ByAccessibilityID, ByAndroidUIAutomator, ByIOSPredicate, ByIOSClassChain,
	ByFlutterText, ByFlutterTooltip, ByFlutterAncestor, ByFlutterDescendant,
	ByFlutterSemanticsLabel, ByFlutterType, ByFlutterValueKey,
}

func (s Strategy) Valid() bool { return slices.Contains(strategies, s) }

// Locator finds an element: a strategy plus a selector.
type Locator struct {
	By       Strategy
	Selector string
}

func (l Locator) String() string {
	return fmt.Sprintf("%s=%s", l.By, l.Selector)
}

// State is an element state a driver can wait for.
type State string

const (
	StateAttached State = "attached"
	StateDetached State = "detached"
	StateVisible  State = "visible"
	StateHidden   State = "hidden"
)

// Element is a located element.
type Element interface {
	Click(ctx context.Context) error
	Fill(ctx context.Context, value string) error
	Text(ctx context.Context) (string, error)
	Visible(ctx context.Context) (bool, error)
}

// Driver is the browser or device handle pages act through.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	Find(ctx context.Context, l Locator) (Element, error)
	WaitFor(ctx context.Context, l Locator, state State, timeout time.Duration) (Element, error)
}
