package render

import (
	"html"
	"html/template"
	"net/url"
	"time"

	"tweetsaver/internal/tweet"
)

// DisplayRecord is a record plus the fields the template shows. It is built
// eagerly by Augment, so rendering never re-evaluates anything.
type DisplayRecord struct {
	tweet.Record

	LinkFromUser template.HTML
	LinkText     template.HTML
	TweetDate    string
	ReplyTo      template.HTML

	// Moveable exposes draggable and data-tweet attributes in the template.
	Moveable bool
}

// Augment computes the display fields for rec relative to now.
func Augment(rec tweet.Record, now time.Time) DisplayRecord {
	d := DisplayRecord{
		Record:       rec,
		LinkFromUser: AutoLink("@" + rec.FromUser),
		LinkText:     AutoLink(rec.Text),
		ReplyTo:      ReplyLink(rec),
	}
	if phrase, ok := RelativeDate(rec.CreatedAt, now); ok {
		d.TweetDate = phrase
	}
	return d
}

// ReplyLink returns the "in reply to" anchor, or "" when rec is not a reply.
func ReplyLink(rec tweet.Record) template.HTML {
	if !rec.IsReply() {
		return ""
	}
	href := "//twitter.com/" + url.PathEscape(rec.ToUser) + "/status/" + url.PathEscape(rec.InReplyToID)
	return template.HTML(`<a target="_blank" href="` + html.EscapeString(href) +
		`"><i class="icon-comment"></i> in reply to</a>`)
}
