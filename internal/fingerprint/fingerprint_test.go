package fingerprint

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/iris/internal/models"
)

var baseImage = models.ImageIdentity{
	Path:     "attachments/cat.png",
	Filename: "cat.png",
	MimeType: "image/png",
}

func baseContext() *models.NoteContext {
	return &models.NoteContext{
		NoteName:   "day",
		TextBefore: "before the image",
		TextAfter:  "after the image",
	}
}

func TestHash_KnownValues(t *testing.T) {
	assert.Equal(t, "0", Hash(""))
	assert.Equal(t, "97", Hash("a"))
	assert.Equal(t, "3105", Hash("ab"))
	assert.Equal(t, "99162322", Hash("hello"))
	// "polygenelubricants" hashes to math.MinInt32.
	assert.Equal(t, "2147483648", Hash("polygenelubricants"))
}

func TestHash_UTF16CodeUnits(t *testing.T) {
	assert.Equal(t, "15587", Hash("é€"))
	// U+1F600 hashes as its surrogate pair 0xD83D 0xDE00.
	assert.Equal(t, "1772899", Hash("😀"))
}

func TestBuild_Determinism(t *testing.T) {
	first := Build(baseImage, models.ActionCustom, baseContext(), "count the cats")
	for i := 0; i < 100; i++ {
		require.Equal(t, first, Build(baseImage, models.ActionCustom, baseContext(), "count the cats"))
	}
	// Pinned so that a change in derivation, which would orphan persisted
	// entries, is caught.
	assert.Equal(t, Build(baseImage, models.ActionCustom, baseContext(), "count the cats"),
		ImageHash(baseImage)+"-custom-"+ContextHash(baseContext())+"-"+PromptHash("count the cats"))
}

func TestBuild_Shape(t *testing.T) {
	img := ImageHash(baseImage)

	assert.Equal(t, img+"-describe", Build(baseImage, models.ActionDescribe, nil, "ignored"))
	assert.Equal(t, img+"-ocr-"+ContextHash(baseContext()), Build(baseImage, models.ActionOCR, baseContext(), ""))
	assert.Equal(t, img+"-custom-"+Hash(""), Build(baseImage, models.ActionCustom, nil, ""))
}

func TestBuild_InstructionOnlyForCustom(t *testing.T) {
	a := Build(baseImage, models.ActionDescribe, baseContext(), "one")
	b := Build(baseImage, models.ActionDescribe, baseContext(), "two")
	assert.Equal(t, a, b)
}

func TestBuild_Truncation(t *testing.T) {
	long := strings.Repeat("k", 200)
	c1 := baseContext()
	c1.TextBefore = long + " tail one"
	c2 := baseContext()
	c2.TextBefore = long + " tail two"
	assert.Equal(t, Build(baseImage, models.ActionDescribe, c1, ""), Build(baseImage, models.ActionDescribe, c2, ""))

	instr := strings.Repeat("p", 500)
	assert.Equal(t,
		Build(baseImage, models.ActionCustom, nil, instr+"a"),
		Build(baseImage, models.ActionCustom, nil, instr+"b"))
	assert.NotEqual(t,
		Build(baseImage, models.ActionCustom, nil, instr[:499]+"a"),
		Build(baseImage, models.ActionCustom, nil, instr[:499]+"b"))
}

func TestBuild_Sensitivity(t *testing.T) {
	type input struct {
		img         models.ImageIdentity
		action      models.Action
		nc          *models.NoteContext
		instruction string
	}
	base := input{img: baseImage, action: models.ActionCustom, nc: baseContext(), instruction: "count the cats"}

	var inputs []input
	add := func(mut func(in *input)) {
		in := base
		in.nc = baseContext()
		mut(&in)
		inputs = append(inputs, in)
	}

	add(func(*input) {})
	for _, p := range []string{"cat.png", "attachments/dog.png", "attachments/cats.png", "a/cat.png", "attachments/cat.jpg", "https://x.test/cat.png", "attachments/Cat.png", "attachments/ cat.png"} {
		add(func(in *input) { in.img.Path = p })
	}
	for _, f := range []string{"dog.png", "cat.jpg", "Cat.png", "cat2.png", "kitten.png"} {
		add(func(in *input) { in.img.Filename = f })
	}
	for _, m := range []string{"image/jpeg", "image/gif", "image/webp", "image/svg+xml", ""} {
		add(func(in *input) { in.img.MimeType = m })
	}
	for _, a := range []models.Action{models.ActionDescribe, models.ActionOCR, models.ActionAltText} {
		add(func(in *input) { in.action = a })
	}
	for _, s := range []string{"before the images", "Before the image", "before", "", "before the image!", "avant l'image", "before  the image", "before the imag"} {
		add(func(in *input) { in.nc.TextBefore = s })
	}
	for _, s := range []string{"after the images", "After the image", "after", "", "after the image.", "après l'image", "after  the image"} {
		add(func(in *input) { in.nc.TextAfter = s })
	}
	for _, n := range []string{"night", "Day", "day2", "days", "journal"} {
		add(func(in *input) { in.nc.NoteName = n })
	}
	for _, s := range []string{"count the dogs", "Count the cats", "count the cat", "", "describe the cats", "count cats"} {
		add(func(in *input) { in.instruction = s })
	}
	add(func(in *input) { in.nc = nil })
	add(func(in *input) { in.nc = nil; in.action = models.ActionDescribe })

	require.Len(t, inputs, 50)

	seen := make(map[string]int, len(inputs))
	for i, in := range inputs {
		key := Build(in.img, in.action, in.nc, in.instruction)
		if j, dup := seen[key]; dup {
			t.Fatalf("inputs %d and %d share key %s", j, i, key)
		}
		seen[key] = i
	}
}

func TestParse(t *testing.T) {
	key := Build(baseImage, models.ActionAltText, baseContext(), "")
	img, action, ok := Parse(key)
	require.True(t, ok)
	assert.Equal(t, ImageHash(baseImage), img)
	assert.Equal(t, models.ActionAltText, action)

	for _, bad := range []string{"", "123", "abc-describe", "123-paint", "-describe"} {
		_, _, ok := Parse(bad)
		assert.False(t, ok, bad)
	}
}
