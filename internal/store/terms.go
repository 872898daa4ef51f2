package store

import (
	"strings"

	"github.com/roach88/kiosk/internal/ir"
)

// IndexTerms derives the default search terms of a document: its id,
// handle and email, its title and name both whole and word by word, and
// "tag:<tag>" for every tag. Callers pass them to Upsert alongside any
// terms of their own.
func IndexTerms(doc ir.Document) []string {
	terms := []string{doc.ID(), doc.Handle(), doc.String("email")}
	for _, key := range []string{"title", "name"} {
		text := doc.String(key)
		terms = append(terms, text)
		if words := strings.Fields(text); len(words) > 1 {
			terms = append(terms, words...)
		}
	}
	for _, tag := range doc.Strings("tags") {
		terms = append(terms, "tag:"+tag)
	}
	return ir.NormalizeTerms(terms)
}
