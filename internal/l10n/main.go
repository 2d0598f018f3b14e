// Package l10n translates user-facing messages through the configcheck
// gettext domain. Untranslated strings are returned as given.
package l10n

import (
	"fmt"
	"os"

	"github.com/snapcore/go-gettext"
)

// LocaleDirEnv overrides where message catalogs are looked up.
const LocaleDirEnv = "CONFIGCHECK_LOCALEDIR"

var locale gettext.Catalog

func init() {
	dir := os.Getenv(LocaleDirEnv)
	if dir == "" {
		dir = "/usr/share/locale"
	}
	domain := gettext.TextDomain{Name: "configcheck", LocaleDir: dir}
	locale = domain.UserLocale()
}

// format applies vars only when given, so messages containing a literal
// '%' pass through untouched.
func format(msg string, vars []interface{}) string {
	if len(vars) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, vars...)
}

// T localizes simple strings.
func T(str string, vars ...interface{}) string {
	return format(locale.Gettext(str), vars)
}

// TN localizes strings with plurals.
func TN(singular, plural string, n uint32, vars ...interface{}) string {
	return format(locale.NGettext(singular, plural, n), vars)
}

// TC localizes strings with contexts.
func TC(ctx, str string, vars ...interface{}) string {
	return format(locale.PGettext(ctx, str), vars)
}
