package biz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"crlf", "a\r\nb", "a\nb"},
		{"lone cr", "a\rb", "a\nb"},
		{"spaces and tabs", "a  \t b", "a b"},
		{"blank lines", "a\n\n\n\n\nb", "a\n\nb"},
		{"trim", "  \n a \n  ", "a"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestCleanIdempotent(t *testing.T) {
	inputs := []string{
		"Abstract\r\n\r\n\r\nText   with\t\ttabs\r\rand CRs",
		" \n\n\n \n\n\n x \r\n\r\n y ",
		"Başlık\n\n\n\nÖzet\t içerik",
	}
	for _, in := range inputs {
		once := Clean(in)
		assert.Equal(t, once, Clean(once), "input %q", in)
	}
}

func TestCleanAdvanced(t *testing.T) {
	in := "<p>Deep learn-\ning</p> see [docs](http://x.io)\nPage 12\nSayfa 3 end"
	got := CleanAdvanced(in)
	assert.Contains(t, got, "Deep learning")
	assert.NotContains(t, got, "<p>")
	assert.NotContains(t, got, "http://x.io")
	assert.NotContains(t, got, "Page 12")
	assert.NotContains(t, got, "Sayfa 3")
}

func TestAbstractReflower(t *testing.T) {
	r := NewReflower(ReflowAbstract, "Abstract")

	t.Run("marker with head", func(t *testing.T) {
		got := r.Reflow("Title\nAuthors  \n\nAbstract\nline one\nline  two")
		assert.Equal(t, "Title\nAuthors\n\nAbstract line one line two", got)
	})
	t.Run("marker at start", func(t *testing.T) {
		got := r.Reflow("Abstract\nbody\ntext")
		assert.Equal(t, "Abstract body text", got)
	})
	t.Run("marker absent", func(t *testing.T) {
		in := "Özet\nmetin\nburada"
		assert.Equal(t, in, r.Reflow(in))
	})
}

func TestNewReflower(t *testing.T) {
	assert.IsType(t, &AbstractReflower{}, NewReflower("", ""))
	assert.IsType(t, NoopReflower{}, NewReflower(ReflowNone, ""))
	assert.Nil(t, NewReflower("columns", ""))

	in := "Abstract\nx\ny"
	assert.Equal(t, in, NewReflower(ReflowNone, "").Reflow(in))
}

func TestNormalizer(t *testing.T) {
	n := NewNormalizer(false, nil)
	assert.Equal(t, "a b", n.Clean("a   b"))
	assert.Equal(t, "Abstract a b", n.Reflow("Abstract\na\nb"))

	adv := NewNormalizer(true, NoopReflower{})
	assert.Equal(t, "x y", adv.Clean("<b>x</b>   y"))
}
