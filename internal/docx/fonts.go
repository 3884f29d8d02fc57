package docx

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrFontDownload indicates a web font could not be fetched.
var ErrFontDownload = errors.New("font download failed")

// DefaultFallbackFont replaces a web font that could not be embedded.
const DefaultFallbackFont = "Arial"

// DefaultFontBaseURL is the root of the Google Fonts repository mirror.
const DefaultFontBaseURL = "https://github.com/google/fonts/raw/main/"

// maxFontSize bounds a downloaded font file.
const maxFontSize = 16 << 20

// WebFonts maps recognized web font families to their regular-weight file,
// relative to the font base URL.
var WebFonts = map[string]string{
	"Roboto":           "ofl/roboto/Roboto[wdth,wght].ttf",
	"Open Sans":        "ofl/opensans/OpenSans[wdth,wght].ttf",
	"Lato":             "ofl/lato/Lato-Regular.ttf",
	"Montserrat":       "ofl/montserrat/Montserrat[wght].ttf",
	"Poppins":          "ofl/poppins/Poppins-Regular.ttf",
	"Raleway":          "ofl/raleway/Raleway[wght].ttf",
	"Playfair Display": "ofl/playfairdisplay/PlayfairDisplay[wght].ttf",
	"Great Vibes":      "ofl/greatvibes/GreatVibes-Regular.ttf",
	"Dancing Script":   "ofl/dancingscript/DancingScript[wght].ttf",
	"Pinyon Script":    "ofl/pinyonscript/PinyonScript-Regular.ttf",
}

// FontFetcher downloads the font file of a family.
type FontFetcher interface {
	Fetch(ctx context.Context, family string) ([]byte, error)
}

// HTTPFontFetcher fetches fonts listed in WebFonts over HTTP.
type HTTPFontFetcher struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPFontFetcher creates a fetcher with the given base URL and timeout.
func NewHTTPFontFetcher(baseURL string, timeout time.Duration) *HTTPFontFetcher {
	if baseURL == "" {
		baseURL = DefaultFontBaseURL
	}
	return &HTTPFontFetcher{BaseURL: baseURL, Client: &http.Client{Timeout: timeout}}
}

// Fetch downloads family's regular font file.
func (f *HTTPFontFetcher) Fetch(ctx context.Context, family string) ([]byte, error) {
	rel, ok := lookupWebFont(family)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a known web font", ErrFontDownload, family)
	}
	u, err := url.JoinPath(f.BaseURL, strings.Split(rel, "/")...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFontDownload, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFontDownload, err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFontDownload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %s", ErrFontDownload, u, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFontSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFontDownload, err)
	}
	return data, nil
}

func lookupWebFont(family string) (string, bool) {
	for name, rel := range WebFonts {
		if strings.EqualFold(name, strings.TrimSpace(family)) {
			return rel, true
		}
	}
	return "", false
}

// IsWebFont reports whether family is a recognized web font.
func IsWebFont(family string) bool {
	_, ok := lookupWebFont(family)
	return ok
}

// FontEmbedder embeds web fonts into archives. Downloads are cached for the
// embedder's lifetime.
type FontEmbedder struct {
	fetcher  FontFetcher
	fallback string
	logger   *zap.Logger

	mu    sync.Mutex
	cache map[string][]byte
}

// NewFontEmbedder creates an embedder. An empty fallback uses DefaultFallbackFont.
func NewFontEmbedder(fetcher FontFetcher, fallback string, logger *zap.Logger) *FontEmbedder {
	if fallback == "" {
		fallback = DefaultFallbackFont
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FontEmbedder{
		fetcher:  fetcher,
		fallback: fallback,
		logger:   logger,
		cache:    make(map[string][]byte),
	}
}

// Embed makes family available in the archive and returns the family name
// runs should reference. Families that are not web fonts are returned as
// is. When the download or the embedding fails the fallback font is
// returned with the unchanged archive.
func (e *FontEmbedder) Embed(ctx context.Context, a *Archive, family string) (*Archive, string) {
	if !IsWebFont(family) {
		return a, family
	}

	data, err := e.fetch(ctx, family)
	if err != nil {
		e.logger.Warn("web font unavailable, using fallback",
			zap.String("font", family), zap.String("fallback", e.fallback), zap.Error(err))
		return a, e.fallback
	}

	out, err := embedFont(a, family, data)
	if err != nil {
		e.logger.Warn("font embedding failed, using fallback",
			zap.String("font", family), zap.String("fallback", e.fallback), zap.Error(err))
		return a, e.fallback
	}
	return out, family
}

func (e *FontEmbedder) fetch(ctx context.Context, family string) ([]byte, error) {
	key := strings.ToLower(family)

	e.mu.Lock()
	data, ok := e.cache[key]
	e.mu.Unlock()
	if ok {
		return data, nil
	}

	data, err := e.fetcher.Fetch(ctx, family)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[key] = data
	e.mu.Unlock()
	return data, nil
}

const (
	fontTablePart = "word/fontTable.xml"
	settingsPart  = "word/settings.xml"

	ctObfuscatedFont = "application/vnd.openxmlformats-officedocument.obfuscatedFont"
	ctFontTable      = "application/vnd.openxmlformats-officedocument.wordprocessingml.fontTable+xml"
)

// settingsOrder lists the settings children that precede embedTrueTypeFonts.
var settingsOrder = []string{
	"writeProtection", "view", "zoom", "removePersonalInformation", "removeDateAndTime",
	"doNotDisplayPageBoundaries", "displayBackgroundShape", "printPostScriptOverText",
	"printFractionalCharacterWidth", "printFormsData", "embedTrueTypeFonts",
}

// embedFont adds data as an obfuscated font for family and registers it in
// the font table.
func embedFont(a *Archive, family string, data []byte) (*Archive, error) {
	out := a.Clone()

	if _, ok := out.File(fontTablePart); !ok {
		if err := createFontTable(out); err != nil {
			return nil, err
		}
	}

	key := "{" + strings.ToUpper(uuid.NewString()) + "}"
	obfuscated, err := obfuscateFont(data, key)
	if err != nil {
		return nil, err
	}

	name := uniqueName(out, "word/fonts/font", ".odttf")
	out.SetFile(name, obfuscated)
	relID, err := addRelationship(out, fontTablePart, relFont, strings.TrimPrefix(name, "word/"))
	if err != nil {
		return nil, err
	}
	if err := ensureContentType(out, "odttf", "", ctObfuscatedFont); err != nil {
		return nil, err
	}

	content, _ := out.File(fontTablePart)
	doc, err := parsePart(content)
	if err != nil {
		return nil, err
	}
	root := doc.Root()
	if root.SelectAttr("xmlns:r") == nil {
		root.CreateAttr("xmlns:r", nsR)
	}

	var font *etree.Element
	for _, f := range root.SelectElements("w:font") {
		if strings.EqualFold(f.SelectAttrValue("w:name", ""), family) {
			font = f
			break
		}
	}
	if font == nil {
		font = root.CreateElement("w:font")
		font.CreateAttr("w:name", family)
		font.CreateElement("w:charset").CreateAttr("w:val", "00")
		font.CreateElement("w:family").CreateAttr("w:val", "auto")
		font.CreateElement("w:pitch").CreateAttr("w:val", "variable")
	}
	if old := font.SelectElement("w:embedRegular"); old != nil {
		font.RemoveChild(old)
	}
	embed := font.CreateElement("w:embedRegular")
	embed.CreateAttr("r:id", relID)
	embed.CreateAttr("w:fontKey", key)

	b, err := doc.WriteToBytes()
	if err != nil {
		return nil, err
	}
	out.SetFile(fontTablePart, b)

	if err := enableEmbeddedFonts(out); err != nil {
		return nil, err
	}
	return out, nil
}

func createFontTable(a *Archive) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
	root := doc.CreateElement("w:fonts")
	root.CreateAttr("xmlns:w", nsW)
	root.CreateAttr("xmlns:r", nsR)
	b, err := doc.WriteToBytes()
	if err != nil {
		return err
	}
	a.SetFile(fontTablePart, b)

	if err := ensureContentType(a, "", "/"+fontTablePart, ctFontTable); err != nil {
		return err
	}
	if !hasRelationshipType(a, documentPart, relFontTable) {
		if _, err := addRelationship(a, documentPart, relFontTable, "fontTable.xml"); err != nil {
			return err
		}
	}
	return nil
}

func enableEmbeddedFonts(a *Archive) error {
	content, ok := a.File(settingsPart)
	if !ok {
		return nil
	}
	doc, err := parsePart(content)
	if err != nil {
		return err
	}
	childOrdered(doc.Root(), "embedTrueTypeFonts", settingsOrder)
	b, err := doc.WriteToBytes()
	if err != nil {
		return err
	}
	a.SetFile(settingsPart, b)
	return nil
}

// obfuscateFont XORs the first 32 bytes of data with the font key, read as
// 16 bytes in reverse order, as required for embedded fonts.
func obfuscateFont(data []byte, key string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.NewReplacer("{", "", "}", "", "-", "").Replace(key))
	if err != nil || len(raw) != 16 {
		return nil, fmt.Errorf("invalid font key %q", key)
	}
	out := append([]byte(nil), data...)
	for i := 0; i < 32 && i < len(out); i++ {
		out[i] ^= raw[15-i%16]
	}
	return out, nil
}

// uniqueName returns prefix<N>suffix for the smallest N >= 1 not in the archive.
func uniqueName(a *Archive, prefix, suffix string) string {
	for n := 1; ; n++ {
		name := fmt.Sprintf("%s%d%s", prefix, n, suffix)
		if _, ok := a.File(name); !ok {
			return name
		}
	}
}
