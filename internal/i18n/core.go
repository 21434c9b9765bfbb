package i18n

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/gin-gonic/gin"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/parleyhq/parley/internal/common/cnst"
)

var (
	translatorOnce sync.Once
	translator     *I18n
	defaultLang    = cnst.LangDefault
)

// InitTranslator initializes the global translator from a directory of TOML
// translation files.
func InitTranslator(translationsPath string) error {
	var initErr error
	translatorOnce.Do(func() {
		translator = NewI18n(language.English)
		initErr = translator.LoadTranslations(translationsPath)
	})
	return initErr
}

// GetTranslator returns the global translator, which may be nil when no
// translations were loaded.
func GetTranslator() *I18n {
	return translator
}

// I18n manages translations for API responses.
type I18n struct {
	bundle      *i18n.Bundle
	defaultLang language.Tag
}

// NewI18n creates an I18n instance with the specified default language.
func NewI18n(defaultLang language.Tag) *I18n {
	bundle := i18n.NewBundle(defaultLang)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	return &I18n{
		bundle:      bundle,
		defaultLang: defaultLang,
	}
}

// LoadTranslations loads every *.toml file in the directory.
func (i *I18n) LoadTranslations(translationsDir string) error {
	files, err := os.ReadDir(translationsDir)
	if err != nil {
		return fmt.Errorf("failed to read translations directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".toml") {
			continue
		}
		i.bundle.MustLoadMessageFile(filepath.Join(translationsDir, file.Name()))
	}

	return nil
}

// Translate returns a localized string for the given message ID and
// language, falling back to the message ID itself.
func (i *I18n) Translate(msgID, lang string, templateData map[string]interface{}) string {
	tag := language.Make(lang)
	localizer := i18n.NewLocalizer(i.bundle, tag.String(), i.defaultLang.String())

	lc := &i18n.LocalizeConfig{MessageID: msgID}
	if len(templateData) > 0 {
		lc.TemplateData = templateData
	}

	msg, err := localizer.Localize(lc)
	if err != nil {
		return msgID
	}
	return msg
}

// Middleware stores the request's language preference on the gin context.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := c.GetHeader(cnst.XLang)
		if lang == "" {
			if accept := c.GetHeader("Accept-Language"); accept != "" {
				first := strings.TrimSpace(strings.Split(strings.Split(accept, ",")[0], ";")[0])
				lang = first
			}
		}
		if lang == "" {
			lang = defaultLang
		}
		c.Set(cnst.XLang, normalizeLang(lang))
		c.Next()
	}
}

func normalizeLang(lang string) string {
	if idx := strings.IndexAny(lang, "-_"); idx > 0 {
		lang = lang[:idx]
	}
	return strings.ToLower(lang)
}

func contextLang(c *gin.Context) string {
	lang, exists := c.Get(cnst.XLang)
	if !exists {
		return defaultLang
	}
	if s, ok := lang.(string); ok && s != "" {
		return s
	}
	return defaultLang
}
