package tables

import (
	"fmt"
	"strings"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/schema"
)

// Languages are the translation columns of the language table, in order.
var Languages = []string{"en", "nl", "ar"}

var (
	languageID = schema.Col("id", 80, schema.VarChar)

	// LanguageItems hold translated display strings.
	LanguageItems = schema.MustTable("language",
		[]schema.Column{
			languageID,
			schema.Col("en", 65535, schema.Text),
			schema.Col("nl", 65535, schema.Text),
			schema.Col("ar", 65535, schema.Text),
		},
		schema.MustIndex("", schema.Primary, false, languageID),
	)
)

// LanguageItem is a row of the language table.
type LanguageItem struct {
	row schema.Row
}

// NewLanguageItem builds an unsaved translation row. Missing languages are NULL.
func NewLanguageItem(id string, translations map[string]string) (*LanguageItem, error) {
	li := &LanguageItem{}
	if err := li.Row().Set(0, id); err != nil {
		return nil, err
	}
	if err := li.SetTranslations(translations); err != nil {
		return nil, err
	}
	return li, nil
}

func (li *LanguageItem) Table() *schema.Table { return LanguageItems }
func (li *LanguageItem) Row() *schema.Row     { return li.row.Bind(LanguageItems) }

func (li *LanguageItem) ID() string {
	s, _ := li.Row().Get(0).(string)
	return s
}

func (li *LanguageItem) SetID(id string) error { return li.Row().Set(0, id) }

// Translation returns the text for lang, or "" when unset.
func (li *LanguageItem) Translation(lang string) string {
	i := LanguageItems.IndexOf(lang)
	if i < 1 {
		return ""
	}
	s, _ := li.Row().Get(i).(string)
	return s
}

// Translations returns the set languages.
func (li *LanguageItem) Translations() map[string]string {
	out := make(map[string]string, len(Languages))
	for _, lang := range Languages {
		if s, ok := li.Row().Get(LanguageItems.IndexOf(lang)).(string); ok {
			out[lang] = s
		}
	}
	return out
}

// SetTranslations overwrites the languages present in translations.
func (li *LanguageItem) SetTranslations(translations map[string]string) error {
	for lang, text := range translations {
		i := LanguageItems.IndexOf(lang)
		if i < 1 {
			return fmt.Errorf("unknown language %q", lang)
		}
		if err := li.Row().Set(i, text); err != nil {
			return err
		}
	}
	return nil
}

// ImageFormats are the accepted image extensions.
var ImageFormats = []string{".jpeg", ".jpg", ".gif", ".bmp", ".png", ".webp", ".heif"}

var (
	imageID = schema.Col("id", 80, schema.VarChar)

	// Images stores product pictures.
	Images = schema.MustTable("images",
		[]schema.Column{
			imageID,
			schema.Col("data", 255*255*255-1, schema.MediumBlob),
			schema.Col("extension", 10, schema.VarChar),
		},
		schema.MustIndex("", schema.Primary, false, imageID),
	)
)

// Image is a row of the images table.
type Image struct {
	row schema.Row
}

func NewImage(id string, data []byte, extension string) (*Image, error) {
	img := &Image{}
	if err := img.Row().Set(0, id); err != nil {
		return nil, err
	}
	if err := img.Row().Set(1, data); err != nil {
		return nil, err
	}
	if err := img.SetExtension(extension); err != nil {
		return nil, err
	}
	return img, nil
}

func (img *Image) Table() *schema.Table { return Images }
func (img *Image) Row() *schema.Row     { return img.row.Bind(Images) }

func (img *Image) ID() string {
	s, _ := img.Row().Get(0).(string)
	return s
}

func (img *Image) Data() []byte {
	b, _ := img.Row().Get(1).([]byte)
	return b
}

func (img *Image) Extension() string {
	s, _ := img.Row().Get(2).(string)
	return s
}

func (img *Image) SetID(id string) error     { return img.Row().Set(0, id) }
func (img *Image) SetData(data []byte) error { return img.Row().Set(1, data) }

// SetExtension accepts one of ImageFormats, with or without the leading dot.
func (img *Image) SetExtension(ext string) error {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	for _, f := range ImageFormats {
		if f == ext {
			return img.Row().Set(2, ext)
		}
	}
	return fmt.Errorf("unsupported image format %q", ext)
}
