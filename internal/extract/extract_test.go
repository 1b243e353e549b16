package extract

import (
	"testing"

	"inbox-unsubscriber/internal/models"
)

func TestFromHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
		wantOK bool
	}{
		{"https only", "<https://a.example/unsub?u=1>", "https://a.example/unsub?u=1", true},
		{"http preferred over earlier mailto", "<mailto:u@a.example?subject=unsub>, <http://a.example/u>", "http://a.example/u", true},
		{"first url wins", "<https://one.example/u>, <https://two.example/u>", "https://one.example/u", true},
		{"mailto fallback", "<mailto:leave@list.example>", "mailto:leave@list.example", true},
		{"uppercase scheme", "<MAILTO:leave@list.example>", "mailto:leave@list.example", true},
		{"whitespace inside brackets", "< https://a.example/u >", "https://a.example/u", true},
		{"unbracketed ignored", "https://a.example/u", "", false},
		{"unsupported scheme", "<ftp://a.example/u>", "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FromHeader(tt.header)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("FromHeader(%q) = %q, %v, want %q, %v", tt.header, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestFromHTML(t *testing.T) {
	tests := []struct {
		name   string
		html   string
		want   string
		wantOK bool
	}{
		{
			name:   "anchor text",
			html:   `<a href="https://y">Unsubscribe</a>`,
			want:   "https://y",
			wantOK: true,
		},
		{
			name:   "own text beats earlier href match",
			html:   `<a href="https://x/unsubscribe">here</a><a href="https://y">Opt out</a>`,
			want:   "https://y",
			wantOK: true,
		},
		{
			name:   "wrapped anchor text beats earlier href match",
			html:   `<a href="https://z.example/unsubscribe-policy">Privacy</a> <a href="https://y.example/u"><span>Unsubscribe</span></a>`,
			want:   "https://y.example/u",
			wantOK: true,
		},
		{
			name:   "mixed content is not anchor text",
			html:   `<a href="https://x/unsubscribe">here</a><a href="https://y"><b>Click</b> to unsubscribe</a>`,
			want:   "https://x/unsubscribe",
			wantOK: true,
		},
		{
			name:   "href match",
			html:   `<a href="https://x/home">Home</a><a href="https://x/Unsubscribe?id=2">click</a>`,
			want:   "https://x/Unsubscribe?id=2",
			wantOK: true,
		},
		{
			name:   "button resolves to form action",
			html:   `<form action="https://x/leave"><button class="btn-unsubscribe">Go</button></form>`,
			want:   "https://x/leave",
			wantOK: true,
		},
		{
			name:   "anchor id",
			html:   `<a id="opt-out-link" href="https://x/o">here</a>`,
			want:   "https://x/o",
			wantOK: true,
		},
		{
			name:   "button without form is skipped",
			html:   `<button class="unsubscribe">Go</button>`,
			wantOK: false,
		},
		{
			name: "footer beats earlier nested text",
			html: `<div><a href="https://x/top"><span>Manage</span> <span>preferences</span></a></div>
<div class="email-Footer"><a href="https://x/foot"><b>Unsubscribe</b> here</a></div>`,
			want:   "https://x/foot",
			wantOK: true,
		},
		{
			name:   "nested text anywhere",
			html:   `<p><a href="https://x/n"><span>Stop receiving</span> these</a></p>`,
			want:   "https://x/n",
			wantOK: true,
		},
		{
			name:   "empty href never matches",
			html:   `<a href="">Unsubscribe</a><a href="  ">unsubscribe</a><a>unsubscribe</a>`,
			wantOK: false,
		},
		{
			name:   "document order breaks ties",
			html:   `<a href="https://first">Remove me</a><a href="https://second">Unsubscribe</a>`,
			want:   "https://first",
			wantOK: true,
		},
		{
			name:   "no match",
			html:   `<p>Hello <a href="https://x/shop">Shop now</a></p>`,
			wantOK: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := FromHTML(tt.html)
			if err != nil {
				t.Fatalf("FromHTML() error = %v", err)
			}
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("FromHTML() = %q, %v, want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name  string
		email models.Email
		want  Result
		ok    bool
	}{
		{
			name: "header wins over body",
			email: models.Email{
				ListUnsubscribe: "<https://x>",
				HTMLBody:        `<a href="https://y">Unsubscribe</a>`,
			},
			want: Result{Locator: "https://x", Origin: models.OriginHeader},
			ok:   true,
		},
		{
			name:  "body fallback",
			email: models.Email{HTMLBody: `<a href="https://y">Unsubscribe</a>`},
			want:  Result{Locator: "https://y", Origin: models.OriginBody},
			ok:    true,
		},
		{
			name: "one-click over https",
			email: models.Email{
				ListUnsubscribe:     "<https://x/one>",
				ListUnsubscribePost: "List-Unsubscribe=One-Click",
			},
			want: Result{Locator: "https://x/one", Origin: models.OriginHeader, OneClick: true},
			ok:   true,
		},
		{
			name: "one-click needs https",
			email: models.Email{
				ListUnsubscribe:     "<http://x/one>",
				ListUnsubscribePost: "List-Unsubscribe=One-Click",
			},
			want: Result{Locator: "http://x/one", Origin: models.OriginHeader},
			ok:   true,
		},
		{
			name:  "neither",
			email: models.Email{TextBody: "unsubscribe at https://z"},
			ok:    false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Extract(&tt.email)
			if got != tt.want || ok != tt.ok {
				t.Errorf("Extract() = %+v, %v, want %+v, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}
