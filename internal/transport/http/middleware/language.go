package middleware

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"
)

// LanguageKey is the context key for the negotiated response language.
const LanguageKey = "language"

// LanguageMatcher negotiates an Accept-Language header.
type LanguageMatcher interface {
	Match(acceptLanguage string) language.Tag
}

// Language negotiates the response language once per request.
func Language(matcher LanguageMatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		if matcher != nil {
			c.Set(LanguageKey, matcher.Match(c.GetHeader("Accept-Language")))
		}
		c.Writer.Header().Add("Vary", "Accept-Language")
		c.Next()
	}
}

// GetLanguage returns the negotiated language and whether one was set.
func GetLanguage(c *gin.Context) (language.Tag, bool) {
	raw, ok := c.Get(LanguageKey)
	if !ok {
		return language.Und, false
	}
	tag, ok := raw.(language.Tag)
	return tag, ok
}
