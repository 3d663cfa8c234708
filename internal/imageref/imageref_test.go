package imageref

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocate_Syntaxes(t *testing.T) {
	cases := []struct {
		name  string
		text  string
		path  string
		raw   string
		token string
	}{
		{"wiki embed", "intro ![[img.png]] outro", "img.png", "", "![[img.png]]"},
		{"wiki embed with size", "x ![[img.png|300]] y", "img.png", "", "![[img.png|300]]"},
		{"markdown", "see ![a cat](assets/cat.jpg) here", "assets/cat.jpg", "cat.jpg", "![a cat](assets/cat.jpg)"},
		{"markdown raw ref", "see ![a cat](cat.jpg \"title\") here", "assets/cat.jpg", "cat.jpg", "![a cat](cat.jpg \"title\")"},
		{"markdown angle", "![x](<my pic.png>)", "my pic.png", "", "![x](<my pic.png>)"},
		{"markdown encoded", "![x](my%20pic.png)", "my pic.png", "", "![x](my%20pic.png)"},
		{"html", `<p><img alt="a" src="pics/b.gif" width=3></p>`, "pics/b.gif", "", `<img alt="a" src="pics/b.gif" width=3>`},
		{"case insensitive", "![[IMG.PNG]]", "img.png", "", "![[IMG.PNG]]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, ok := Locate(tc.text, tc.path, tc.raw)
			require.True(t, ok)
			assert.Equal(t, tc.token, tc.text[m.Index:m.End()])
		})
	}
}

func TestLocate_FirstMatchWins(t *testing.T) {
	text := "![[a.png]] and again ![[a.png]]"
	m, ok := Locate(text, "a.png", "")
	require.True(t, ok)
	assert.Equal(t, Match{Index: 0, Length: 10}, m)
}

func TestLocate_EscapesRegexMetacharacters(t *testing.T) {
	_, ok := Locate("![[aXpng]]", "a.png", "")
	assert.False(t, ok)

	m, ok := Locate("![[shot (1).png]]", "shot (1).png", "")
	require.True(t, ok)
	assert.Equal(t, 0, m.Index)
}

func TestLocate_Miss(t *testing.T) {
	_, ok := Locate("no images here, just img.png as text", "img.png", "img.png")
	assert.False(t, ok)

	_, ok = Locate("![[img.png]]", "", "")
	assert.False(t, ok)
}

func TestScan(t *testing.T) {
	text := "![[a.png]] ![[Other note]] ![b](https://x.test/b.webp) <img src='c.svg'>"
	refs := Scan(text)
	require.Len(t, refs, 3)

	assert.Equal(t, "a.png", refs[0].Target)
	assert.Equal(t, SyntaxWikiEmbed, refs[0].Syntax)
	assert.Equal(t, "https://x.test/b.webp", refs[1].Target)
	assert.Equal(t, SyntaxMarkdown, refs[1].Syntax)
	assert.Equal(t, "c.svg", refs[2].Target)
	assert.Equal(t, SyntaxHTML, refs[2].Syntax)

	for _, r := range refs {
		assert.Equal(t, r.Token, text[r.Index:r.End()])
	}
}

func TestDetect_VaultPath(t *testing.T) {
	files := map[string]bool{"notes/pics/a.png": true, "attachments/b.jpg": true}
	exists := func(p string) bool { return files[p] }

	id := Detect("notes/day.md", "pics/a.png", exists)
	assert.Equal(t, "notes/pics/a.png", id.Path)
	assert.Equal(t, "a.png", id.Filename)
	assert.Equal(t, "image/png", id.MimeType)
	assert.False(t, id.External)

	id = Detect("notes/day.md", "b.jpg", exists)
	assert.Equal(t, "attachments/b.jpg", id.Path)
	assert.Equal(t, "image/jpeg", id.MimeType)

	id = Detect("day.md", "../../etc/missing.png", exists)
	assert.Equal(t, "etc/missing.png", id.Path)
	assert.Equal(t, "../../etc/missing.png", id.RawRef)
}

func TestDetect_External(t *testing.T) {
	id := Detect("n.md", "https://cdn.test/img/photo.webp?x=1", nil)
	assert.True(t, id.External)
	assert.Equal(t, "https://cdn.test/img/photo.webp?x=1", id.Path)
	assert.Equal(t, "photo.webp", id.Filename)
	assert.Equal(t, "image/webp", id.MimeType)

	id = Detect("n.md", "data:image/gif;base64,R0lGOD", nil)
	assert.True(t, id.External)
	assert.Equal(t, "image/gif", id.MimeType)
}
