// Package sessiontest provides an in-memory session.Driver for tests.
package sessiontest

import (
	"context"
	"errors"
	"strings"
)

var ErrNotFound = errors.New("sessiontest: element not found")

// Driver simulates the portal login page. A submit with a login listed in
// Banners shows that banner; otherwise the values in Tokens are written to
// storage, emulating what the portal's scripts do after authentication.
type Driver struct {
	UserSelector string
	// Tokens maps storage keys to the values written on successful login.
	Tokens map[string]string
	// TokensByLogin overrides Tokens for specific login ids.
	TokensByLogin map[string]map[string]string
	// Banners maps a login id to the page text shown after submitting it.
	Banners map[string]string
	// HiddenFields lists login ids for which the credential form never
	// appears.
	HiddenFields map[string]bool
	// RevealSelectors that fail to find the login control.
	RevealMisses map[string]bool
	NavigateErr  error

	Storage   map[string]string
	Navigated []string
	Submitted []string
	Reveals   []string
	Clears    int
	Closed    int

	fields   map[string]string
	pageText string
	current  string
}

func New(tokens map[string]string) *Driver {
	return &Driver{
		UserSelector: "#username",
		Tokens:       tokens,
		Banners:      map[string]string{},
		HiddenFields: map[string]bool{},
		RevealMisses: map[string]bool{},
		Storage:      map[string]string{},
	}
}

func (d *Driver) Navigate(_ context.Context, url string) error {
	if d.NavigateErr != nil {
		return d.NavigateErr
	}
	d.Navigated = append(d.Navigated, url)
	d.fields = map[string]string{}
	d.pageText = "Agência Virtual"
	return nil
}

func (d *Driver) ClickByText(_ context.Context, selector, pattern string) error {
	if d.RevealMisses[selector] {
		return ErrNotFound
	}
	d.Reveals = append(d.Reveals, selector)
	return nil
}

func (d *Driver) FillField(ctx context.Context, selector, value string) error {
	if selector == d.UserSelector {
		d.current = value
	}
	if d.HiddenFields[d.current] {
		return ErrNotFound
	}
	d.fields[selector] = value
	return nil
}

func (d *Driver) Submit(_ context.Context, _ string) error {
	login := d.fields[d.UserSelector]
	d.Submitted = append(d.Submitted, login)
	if banner, ok := d.Banners[login]; ok {
		d.pageText = banner
		return nil
	}
	d.pageText = "Minhas faturas"
	tokens := d.Tokens
	if byLogin, ok := d.TokensByLogin[login]; ok {
		tokens = byLogin
	}
	for k, v := range tokens {
		d.Storage[k] = v
	}
	return nil
}

func (d *Driver) PageText(context.Context) (string, error) {
	return d.pageText, nil
}

func (d *Driver) ReadStorage(_ context.Context, key string) (string, error) {
	return d.Storage[key], nil
}

func (d *Driver) ClearStorage(context.Context) error {
	d.Clears++
	d.Storage = map[string]string{}
	return nil
}

// Expire drops every stored value, as the portal does when a token lapses.
func (d *Driver) Expire() {
	d.Storage = map[string]string{}
}

func (d *Driver) Close() error {
	d.Closed++
	return nil
}

// Logins returns how many times a login was submitted for id.
func (d *Driver) Logins(id string) int {
	n := 0
	for _, s := range d.Submitted {
		if strings.EqualFold(s, id) {
			n++
		}
	}
	return n
}
