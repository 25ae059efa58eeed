// Package platform abstracts host environment capabilities so that
// components take them by injection instead of probing globals.
package platform

import "github.com/gen2brain/beeep"

// Capabilities describes what the hosting environment supports.
type Capabilities interface {
	// HasWebSocket reports whether a live push channel can be opened.
	HasWebSocket() bool
	// HasNotifications reports whether Notify reaches the user.
	HasNotifications() bool
	// Notify raises a user-visible alert.
	Notify(title, body string) error
}

// Desktop is the capability set of an interactive desktop session.
type Desktop struct{}

func (Desktop) HasWebSocket() bool     { return true }
func (Desktop) HasNotifications() bool { return true }

// Notify shows a desktop notification.
func (Desktop) Notify(title, body string) error {
	return beeep.Notify(title, body, "")
}

// Headless is the capability set of a daemon or CI environment:
// push channel available, alerts silently dropped.
type Headless struct{}

func (Headless) HasWebSocket() bool     { return true }
func (Headless) HasNotifications() bool { return false }

func (Headless) Notify(title, body string) error { return nil }
