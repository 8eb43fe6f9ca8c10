package page

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/pagerunner/pkg/testdata"
	"github.com/entrhq/pagerunner/pkg/wait"
)

type landingMapping struct {
	BtnSignIn Locator
	BtnSignUp Locator
}

type landingPage struct {
	Base
	onScreen bool
	calls    int
}

func (p *landingPage) IsOnFocus(ctx context.Context) (bool, error) {
	p.calls++
	return p.onScreen, nil
}

type otherLandingPage struct {
	Base
}

type loginPage struct {
	Base
}

type fakeDriver struct{}

func (fakeDriver) Navigate(ctx context.Context, url string) error { return nil }
func (fakeDriver) Find(ctx context.Context, l Locator) (Element, error) {
	return nil, errors.New("not implemented")
}
func (fakeDriver) WaitFor(ctx context.Context, l Locator, s State, timeout time.Duration) (Element, error) {
	return nil, errors.New("not implemented")
}

func newLandingMapping() any {
	return &landingMapping{
		BtnSignIn: Locator{By: ByAccessibilityID, Selector: "BTN_SIGN_IN"},
		BtnSignUp: Locator{By: ByXPath, Selector: "//*[@text='Sign up']"},
	}
}

func sampleCatalog() *Catalog {
	c := NewCatalog()
	c.RegisterPage("landing", func() Page { return &landingPage{} })
	c.RegisterMapping("landing", newLandingMapping)
	c.RegisterPage("login", func() Page { return &loginPage{} })
	c.RegisterMapping("orphan", func() any { return &landingMapping{BtnSignIn: Locator{By: ByID, Selector: "x"}, BtnSignUp: Locator{By: ByID, Selector: "y"}} })
	return c
}

func TestLoad_WiresPagesAndMappings(t *testing.T) {
	data, err := testdata.FromMap(map[string]any{"data": map[string]any{"user": "ana"}})
	require.NoError(t, err)
	drv := fakeDriver{}

	reg, err := Load(sampleCatalog(), Injection{Driver: drv, Data: data, Objects: map[string]any{"env": "uat"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"landing", "login"}, reg.Names())

	landing, err := Get[*landingPage](reg, "landing")
	require.NoError(t, err)
	assert.Equal(t, "landing", landing.Name())
	assert.Equal(t, drv, landing.Driver())
	assert.Equal(t, "ana", landing.Data().String("data.user"))
	env, ok := landing.Object("env")
	assert.True(t, ok)
	assert.Equal(t, "uat", env)

	m, ok := MappingOf[*landingMapping](landing)
	require.True(t, ok)
	assert.Equal(t, Locator{By: ByAccessibilityID, Selector: "BTN_SIGN_IN"}, m.BtnSignIn)

	login := reg.MustPage("login")
	assert.Nil(t, login.(*loginPage).Mapping())

	_, ok = reg.Page("orphan")
	assert.False(t, ok)
	_, ok = reg.Mapping("orphan")
	assert.False(t, ok)
}

func TestLoad_OneInstancePerName(t *testing.T) {
	built := 0
	c := NewCatalog()
	c.RegisterPage("landing", func() Page { built++; return &landingPage{} })

	reg, err := Load(c, Injection{})
	require.NoError(t, err)
	assert.Equal(t, 1, built)
	a, _ := reg.Page("landing")
	b, _ := reg.Page("landing")
	assert.Same(t, a, b)
}

func TestLoad_DuplicateFailsByDefault(t *testing.T) {
	c := NewCatalog()
	c.RegisterPage("landing", func() Page { return &landingPage{} })
	c.RegisterPage("landing", func() Page { return &otherLandingPage{} })

	_, err := Load(c, Injection{})
	var se *StructureError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "page", se.Kind)
	assert.Equal(t, "landing", se.Name)

	c = NewCatalog()
	c.RegisterMapping("landing", newLandingMapping)
	c.RegisterMapping("landing", newLandingMapping)
	_, err = Load(c, Injection{})
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "mapping", se.Kind)
}

// Two pages registered as "landing": the registry publishes exactly one,
// the first registered.
func TestLoad_FirstWins(t *testing.T) {
	c := NewCatalog()
	c.RegisterPage("landing", func() Page { return &landingPage{} })
	c.RegisterPage("landing", func() Page { return &otherLandingPage{} })

	reg, err := Load(c, Injection{}, WithDuplicatePolicy(FirstWins))
	require.NoError(t, err)

	assert.Equal(t, []string{"landing"}, reg.Names())
	p, ok := reg.Page("landing")
	require.True(t, ok)
	assert.IsType(t, &landingPage{}, p)
}

func TestLoad_PageFilter(t *testing.T) {
	reg, err := Load(sampleCatalog(), Injection{}, WithPageFilter("log*"))
	require.NoError(t, err)
	assert.Equal(t, []string{"login"}, reg.Names())

	reg, err = Load(sampleCatalog(), Injection{}, WithPageFilter("login", "land*"))
	require.NoError(t, err)
	assert.Equal(t, []string{"landing", "login"}, reg.Names())
}

func TestLoad_InvalidMapping(t *testing.T) {
	tests := []struct {
		name    string
		mapping MappingFactory
		reason  string
	}{
		{"unknown strategy", func() any {
			return &landingMapping{BtnSignIn: Locator{By: "magic", Selector: "x"}, BtnSignUp: Locator{By: ByID, Selector: "y"}}
		}, "unknown strategy"},
		{"empty selector", func() any {
			return &landingMapping{BtnSignIn: Locator{By: ByID}, BtnSignUp: Locator{By: ByID, Selector: "y"}}
		}, "empty selector"},
		{"nil", func() any { return nil }, "nil"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCatalog()
			c.RegisterPage("landing", func() Page { return &landingPage{} })
			c.RegisterMapping("landing", tt.mapping)

			_, err := Load(c, Injection{})
			var se *StructureError
			require.ErrorAs(t, err, &se)
			assert.Contains(t, se.Reason, tt.reason)
		})
	}
}

func TestLoad_NilPage(t *testing.T) {
	c := NewCatalog()
	c.RegisterPage("ghost", func() Page { return nil })
	_, err := Load(c, Injection{})
	var se *StructureError
	assert.ErrorAs(t, err, &se)
}

func TestGet_Errors(t *testing.T) {
	reg, err := Load(sampleCatalog(), Injection{})
	require.NoError(t, err)

	_, err = Get[*loginPage](reg, "checkout")
	assert.ErrorIs(t, err, ErrNotRegistered)

	_, err = Get[*loginPage](reg, "landing")
	assert.Error(t, err)
	assert.Panics(t, func() { reg.MustPage("checkout") })
}

func TestRegister_Panics(t *testing.T) {
	c := NewCatalog()
	assert.Panics(t, func() { c.RegisterPage("", func() Page { return &loginPage{} }) })
	assert.Panics(t, func() { c.RegisterPage("login", nil) })
	assert.Panics(t, func() { c.RegisterMapping("", newLandingMapping) })
	assert.Panics(t, func() { c.RegisterMapping("login", nil) })
}

func TestCatalogNames(t *testing.T) {
	c := sampleCatalog()
	assert.Equal(t, []string{"landing", "login"}, c.PageNames())
	assert.Equal(t, []string{"landing", "orphan"}, c.MappingNames())
}

func resetShared() {
	sharedOnce = sync.Once{}
	shared, sharedErr = nil, nil
}

func TestShared_FirstCallWins(t *testing.T) {
	resetShared()
	t.Cleanup(resetShared)

	first, err := Shared(sampleCatalog(), Injection{Objects: map[string]any{"run": 1}})
	require.NoError(t, err)

	empty := NewCatalog()
	second, err := Shared(empty, Injection{Objects: map[string]any{"run": 2}})
	require.NoError(t, err)

	assert.Same(t, first, second)
	p := first.MustPage("landing").(*landingPage)
	run, _ := p.Object("run")
	assert.Equal(t, 1, run)
}

func TestContextHandle(t *testing.T) {
	reg, err := Load(sampleCatalog(), Injection{})
	require.NoError(t, err)

	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithRegistry(context.Background(), reg)
	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, reg, got)
}

func TestWaitForFocus(t *testing.T) {
	p := &landingPage{onScreen: true}
	p.inject("landing", Injection{}, nil)
	require.NoError(t, WaitForFocus(context.Background(), p, time.Second))

	missing := &landingPage{}
	missing.inject("landing", Injection{}, nil)
	err := WaitForFocus(context.Background(), missing, 10*time.Millisecond)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "landing", nf.Page)
	assert.GreaterOrEqual(t, missing.calls, 1)
}

func TestWaitForFocusWith_UsesPoll(t *testing.T) {
	missing := &landingPage{}
	missing.inject("landing", Injection{}, nil)

	err := WaitForFocusWith(context.Background(), missing, wait.Options{Timeout: 200 * time.Millisecond, Poll: 10 * time.Millisecond})
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.GreaterOrEqual(t, missing.calls, 5)
}

func TestLoad_TypedNilPage(t *testing.T) {
	c := NewCatalog()
	c.RegisterPage("landing", func() Page { return (*landingPage)(nil) })

	_, err := Load(c, Injection{})
	var se *StructureError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "landing", se.Name)
	assert.Contains(t, se.Error(), "factory returned nil")
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("first-wins")
	require.NoError(t, err)
	assert.Equal(t, FirstWins, p)

	p, err = ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, FailOnDuplicate, p)

	_, err = ParsePolicy("last-wins")
	assert.Error(t, err)
	assert.Equal(t, "first-wins", FirstWins.String())
}

func TestLocator(t *testing.T) {
	assert.Equal(t, "id=selenium_logo", Locator{By: ByID, Selector: "selenium_logo"}.String())
	assert.True(t, ByFlutterValueKey.Valid())
	assert.False(t, Strategy("magic").Valid())
}
