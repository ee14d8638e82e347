package news

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func timeSelection(t *testing.T, html string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc.Find("time")
}

func TestHeadlineDatePrefersDatetimeAttr(t *testing.T) {
	sel := timeSelection(t, `<article><time datetime="2026-08-28T14:00:00Z">3 hours ago</time></article>`)
	if got := headlineDate(sel); got != "2026-08-28T14:00:00Z" {
		t.Errorf("date = %q", got)
	}
}

func TestHeadlineDateFallsBackToText(t *testing.T) {
	sel := timeSelection(t, `<article><time> 3 hours ago </time></article>`)
	if got := headlineDate(sel); got != "3 hours ago" {
		t.Errorf("date = %q", got)
	}
}
