package imageref

import (
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/starford/iris/internal/models"
)

// attachmentsDir is the conventional vault folder for attachments.
const attachmentsDir = "attachments"

var extToMime = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".bmp":  "image/bmp",
	".avif": "image/avif",
}

// ExistsFunc reports whether a vault-relative path exists.
type ExistsFunc func(vaultPath string) bool

// Detect derives the identity of the image referenced by rawRef from the
// note at notePath. URLs are external images. Vault paths are tried
// relative to the note, then to the vault root, then under attachments/;
// the first candidate that exists wins, otherwise the cleaned reference is
// kept as is. exists may be nil.
func Detect(notePath, rawRef string, exists ExistsFunc) models.ImageIdentity {
	ref := strings.TrimSpace(rawRef)
	id := models.ImageIdentity{RawRef: ref}

	if isExternal(ref) {
		id.External = true
		id.Path = ref
		if u, err := url.Parse(ref); err == nil && u.Scheme != "data" {
			if base := path.Base(u.Path); base != "." && base != "/" {
				id.Filename = base
			}
		}
		id.MimeType = mimeFor(id.Filename)
		if strings.HasPrefix(ref, "data:") {
			id.MimeType = dataURIMime(ref)
		}
		return id
	}

	if unescaped, err := url.PathUnescape(ref); err == nil {
		ref = unescaped
	}
	ref = strings.TrimPrefix(path.Clean("/"+ref), "/")

	id.Path = ref
	if exists != nil {
		for _, c := range candidates(notePath, ref) {
			if exists(c) {
				id.Path = c
				break
			}
		}
	}
	id.Filename = path.Base(id.Path)
	id.MimeType = mimeFor(id.Filename)
	return id
}

func candidates(notePath, ref string) []string {
	out := make([]string, 0, 3)
	if dir := path.Dir(notePath); dir != "." && dir != "" {
		out = append(out, path.Join(dir, ref))
	}
	out = append(out, ref)
	if !strings.HasPrefix(ref, attachmentsDir+"/") {
		out = append(out, path.Join(attachmentsDir, ref))
	}
	return out
}

func isExternal(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "data:")
}

func mimeFor(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		return ""
	}
	if m, ok := extToMime[ext]; ok {
		return m
	}
	if m := mime.TypeByExtension(ext); m != "" {
		return strings.Split(m, ";")[0]
	}
	return ""
}

// dataURIMime returns the media type of a data:[<mediatype>][;base64],... URI.
func dataURIMime(uri string) string {
	rest := strings.TrimPrefix(uri, "data:")
	if i := strings.Index(rest, ","); i >= 0 {
		rest = rest[:i]
	}
	return strings.Split(rest, ";")[0]
}
