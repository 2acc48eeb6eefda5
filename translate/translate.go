// Package translate formats user-facing messages for the host locale.
package translate

import (
	"log/slog"

	"github.com/jeandeaual/go-locale"

	"golang.org/x/text/message"
)

var printer *message.Printer

func init() {
	locales, err := locale.GetLocales()
	if err != nil {
		slog.Debug("mrcm: locale lookup failed", "err", err)
	}

	if len(locales) == 0 {
		locales = []string{"en-US"}
	}

	printer = message.NewPrinter(message.MatchLanguage(locales...))
}

// From formats an en-US Sprintf() format for the current locale.
func From(key message.Reference, args ...any) string {
	return printer.Sprintf(key, args...)
}
