// Package extract finds the unsubscribe locator of a message, either from its
// List-Unsubscribe header or by scanning the HTML body.
package extract

import (
	"regexp"
	"strings"

	"inbox-unsubscriber/internal/models"

	"github.com/PuerkitoBio/goquery"
)

// Keywords that mark an unsubscribe affordance, matched case-insensitively
var Keywords = []string{
	"unsubscribe",
	"opt out",
	"opt-out",
	"remove me",
	"cancel subscription",
	"stop receiving",
	"manage preferences",
	"email preferences",
}

const oneClickValue = "list-unsubscribe=one-click"

// Result is a located unsubscribe affordance
type Result struct {
	Locator  string
	Origin   models.LocatorOrigin
	OneClick bool
}

var bracketed = regexp.MustCompile(`<\s*([^>]*?)\s*>`)

// Extract returns the unsubscribe locator for email. The header always wins
// over the body.
func Extract(email *models.Email) (Result, bool) {
	if locator, ok := FromHeader(email.ListUnsubscribe); ok {
		return Result{
			Locator:  locator,
			Origin:   models.OriginHeader,
			OneClick: isOneClick(locator, email.ListUnsubscribePost),
		}, true
	}
	if email.HTMLBody == "" {
		return Result{}, false
	}
	locator, ok, err := FromHTML(email.HTMLBody)
	if err != nil || !ok {
		return Result{}, false
	}
	return Result{Locator: locator, Origin: models.OriginBody}, true
}

// FromHeader returns the first bracketed http(s) URL of a List-Unsubscribe
// value, or failing that its first bracketed mailto URI.
func FromHeader(value string) (string, bool) {
	var mailto string
	for _, m := range bracketed.FindAllStringSubmatch(value, -1) {
		candidate := m[1]
		lower := strings.ToLower(candidate)
		switch {
		case strings.HasPrefix(lower, "https://"), strings.HasPrefix(lower, "http://"):
			return candidate, true
		case mailto == "" && strings.HasPrefix(lower, "mailto:"):
			mailto = "mailto:" + candidate[len("mailto:"):]
		}
	}
	if mailto != "" {
		return mailto, true
	}
	return "", false
}

func isOneClick(locator, post string) bool {
	if !strings.HasPrefix(strings.ToLower(locator), "https://") {
		return false
	}
	return strings.Contains(strings.ToLower(post), oneClickValue)
}

// FromHTML applies the body heuristics in priority order:
// anchor text, anchor href, class or id of a link or button, anchors in
// footer containers, then any anchor's full text.
func FromHTML(html string) (string, bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false, err
	}

	anchors := doc.Find("a")
	for _, find := range []func(*goquery.Document, *goquery.Selection) (string, bool){
		byOwnText,
		byHref,
		byClassOrID,
		byFooter,
		byFullText,
	} {
		if locator, ok := find(doc, anchors); ok {
			return locator, true, nil
		}
	}
	return "", false, nil
}

func containsKeyword(s string) bool {
	s = strings.ToLower(s)
	for _, k := range Keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func href(s *goquery.Selection) (string, bool) {
	v := strings.TrimSpace(s.AttrOr("href", ""))
	return v, v != ""
}

// firstAnchor returns the href of the first anchor, in document order,
// accepted by match
func firstAnchor(anchors *goquery.Selection, match func(*goquery.Selection) bool) (string, bool) {
	var found string
	anchors.EachWithBreak(func(_ int, a *goquery.Selection) bool {
		h, ok := href(a)
		if !ok || !match(a) {
			return true
		}
		found = h
		return false
	})
	return found, found != ""
}

// soleText follows single-child chains down to a text node, so
// <a><span>Unsubscribe</span></a> yields "Unsubscribe". Mixed content yields "".
func soleText(s *goquery.Selection) string {
	for {
		contents := s.Contents()
		if contents.Length() != 1 {
			return ""
		}
		if goquery.NodeName(contents) == "#text" {
			return contents.Text()
		}
		s = contents
	}
}

func byOwnText(_ *goquery.Document, anchors *goquery.Selection) (string, bool) {
	return firstAnchor(anchors, func(a *goquery.Selection) bool {
		return containsKeyword(soleText(a))
	})
}

func byHref(_ *goquery.Document, anchors *goquery.Selection) (string, bool) {
	return firstAnchor(anchors, func(a *goquery.Selection) bool {
		h, _ := href(a)
		return containsKeyword(h)
	})
}

func byClassOrID(doc *goquery.Document, _ *goquery.Selection) (string, bool) {
	var found string
	doc.Find("a, button").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if !containsKeyword(el.AttrOr("class", "")) && !containsKeyword(el.AttrOr("id", "")) {
			return true
		}
		if goquery.NodeName(el) == "button" {
			action := strings.TrimSpace(el.Closest("form").AttrOr("action", ""))
			if action == "" {
				return true
			}
			found = action
			return false
		}
		if h, ok := href(el); ok {
			found = h
			return false
		}
		return true
	})
	return found, found != ""
}

func isFooter(_ int, s *goquery.Selection) bool {
	class := strings.ToLower(s.AttrOr("class", ""))
	return strings.Contains(class, "footer") || strings.Contains(class, "bottom")
}

func byFooter(_ *goquery.Document, anchors *goquery.Selection) (string, bool) {
	return firstAnchor(anchors, func(a *goquery.Selection) bool {
		if a.Parents().FilterFunction(isFooter).Length() == 0 {
			return false
		}
		return containsKeyword(a.Text())
	})
}

func byFullText(_ *goquery.Document, anchors *goquery.Selection) (string, bool) {
	return firstAnchor(anchors, func(a *goquery.Selection) bool {
		return containsKeyword(a.Text())
	})
}
