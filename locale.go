package dynip

import (
	"os"
	"strings"

	"golang.org/x/text/language"
)

// localeParams derives the language and country codes reported with update checks
// from the POSIX locale environment, e.g. "de_AT.UTF-8" gives ("de", "AT").
func localeParams() (lang, country string) {
	for _, env := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(env); v != "" {
			return parseLocale(v)
		}
	}
	return "", ""
}

func parseLocale(v string) (lang, country string) {
	v, _, _ = strings.Cut(v, ".")
	v, _, _ = strings.Cut(v, "@")
	if v == "C" || v == "POSIX" {
		return "", ""
	}
	tag, err := language.Parse(strings.ReplaceAll(v, "_", "-"))
	if err != nil {
		return "", ""
	}
	base, _ := tag.Base()
	region, conf := tag.Region()
	if conf != language.Exact {
		return base.String(), ""
	}
	return base.String(), region.String()
}
