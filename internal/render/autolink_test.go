package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAutoLink(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain text is escaped",
			in:   `a <b> & "c"`,
			want: `a &lt;b&gt; &amp; &#34;c&#34;`,
		},
		{
			name: "url",
			in:   "see http://golang.org/doc.",
			want: `see <a href="http://golang.org/doc" rel="nofollow" target="_blank">http://golang.org/doc</a>.`,
		},
		{
			name: "mention",
			in:   "hi @gopher!",
			want: `hi @<a class="tweet-url username" href="https://twitter.com/gopher" data-screen-name="gopher" rel="nofollow" target="_blank">gopher</a>!`,
		},
		{
			name: "hashtag",
			in:   "#golang rocks",
			want: `<a href="https://twitter.com/search?q=%23golang" title="#golang" class="tweet-url hashtag" rel="nofollow" target="_blank">#golang</a> rocks`,
		},
		{
			name: "email is not a mention",
			in:   "mail me@example.com",
			want: "mail me@example.com",
		},
		{
			name: "handle at the length limit",
			in:   "@abcdefghijklmnopqrst",
			want: `@<a class="tweet-url username" href="https://twitter.com/abcdefghijklmnopqrst" data-screen-name="abcdefghijklmnopqrst" rel="nofollow" target="_blank">abcdefghijklmnopqrst</a>`,
		},
		{
			name: "overlong handle is left alone",
			in:   "cc @abcdefghijklmnopqrstu ok",
			want: "cc @abcdefghijklmnopqrstu ok",
		},
		{
			name: "handle glued to another at sign",
			in:   "@foo@bar",
			want: "@foo@bar",
		},
		{
			name: "numeric hash is not a hashtag",
			in:   "issue #123",
			want: "issue #123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(AutoLink(tt.in)))
		})
	}
}
