package api

import (
	"net/http"

	"golang.org/x/text/language"

	"github.com/nerrad567/weddingcue-core/internal/timeline"
)

// descriptionLanguages are the languages timer descriptions are written in,
// with the key each is stored under. The first entry is the fallback.
// Brazilian Portuguese is stored as "br".
var descriptionLanguages = []struct {
	tag language.Tag
	key string
}{
	{language.English, "en"},
	{language.French, "fr"},
	{language.BrazilianPortuguese, "br"},
}

var descriptionMatcher = func() language.Matcher {
	tags := make([]language.Tag, len(descriptionLanguages))
	for i, l := range descriptionLanguages {
		tags[i] = l.tag
	}
	return language.NewMatcher(tags)
}()

// requestLanguage picks the description key for a request.
// An explicit ?lang= (a stored key or any BCP 47 tag) wins over the
// Accept-Language header.
func requestLanguage(r *http.Request) string {
	var prefs []language.Tag
	if lang := r.URL.Query().Get("lang"); lang != "" {
		for _, l := range descriptionLanguages {
			if l.key == lang {
				return l.key
			}
		}
		if tag, err := language.Parse(lang); err == nil {
			prefs = append(prefs, tag)
		}
	}
	if accept := r.Header.Get("Accept-Language"); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil {
			prefs = append(prefs, tags...)
		}
	}

	_, idx, _ := descriptionMatcher.Match(prefs...)
	return descriptionLanguages[idx].key
}

// localizedDescription returns the timer's description in lang, falling
// back through the supported languages in order.
func localizedDescription(t *timeline.Timer, lang string) string {
	if d := t.Description(lang); d != "" {
		return d
	}
	for _, l := range descriptionLanguages {
		if d := t.Description(l.key); d != "" {
			return d
		}
	}
	return ""
}
