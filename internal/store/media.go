package store

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/kiosk/internal/ir"
)

// reportMedia makes sure every media URL has an images row. Image ids are
// derived from the URL, so the same URL always maps to the same image and
// existing images are left alone.
func (t *Tx) reportMedia(ctx context.Context, urls []string) error {
	images := t.Resource(ir.KindImage)
	for _, u := range urls {
		id := ir.ImageID(u)
		_, _, found, err := t.lookupKeys(ctx, images.res, id)
		if err != nil {
			return fmt.Errorf("report media %s: %w", u, err)
		}
		if found {
			continue
		}
		name := imageName(u)
		img := ir.Document{
			"id":     id,
			"handle": imageHandle(name, id),
			"name":   name,
			"url":    u,
			"active": true,
		}
		if _, err := images.Upsert(ctx, img, IndexTerms(img)...); err != nil {
			return fmt.Errorf("report media %s: %w", u, err)
		}
	}
	return nil
}

// imageName is the last path element of u, unescaped.
func imageName(u string) string {
	p := u
	if parsed, err := url.Parse(u); err == nil {
		p = parsed.Path
	}
	name := path.Base(p)
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	if name == "" || name == "." || name == "/" {
		return "image"
	}
	return name
}

// imageHandle is the slug of the name without extension plus the first
// eight hex digits of the image id, so equal names from different URLs
// still get distinct handles.
func imageHandle(name, id string) string {
	base := strings.TrimSuffix(name, path.Ext(name))
	slug := Slugify(base)
	if slug == "" {
		slug = "image"
	}
	hash := strings.TrimPrefix(id, ir.KindImage.Prefix()+"_")
	if len(hash) > 8 {
		hash = hash[:8]
	}
	return slug + "-" + hash
}

// Slugify lower-cases s, strips accents, and joins runs of letters and
// digits with single dashes.
func Slugify(s string) string {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(fold, s); err == nil {
		s = folded
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
