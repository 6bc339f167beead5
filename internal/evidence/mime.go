package evidence

import (
	"fmt"
	"path"
	"strings"
	"unicode"

	"github.com/gabriel-vasile/mimetype"

	"github.com/angelmondragon/medledger-backend/pkg/enums"
)

type mimeGroup string

const (
	mimeGroupImages mimeGroup = "images"
	mimeGroupPDFs   mimeGroup = "PDFs"
)

var mimeGroupTypes = map[mimeGroup][]string{
	mimeGroupImages: {"image/png", "image/jpeg", "image/webp", "image/heic"},
	mimeGroupPDFs:   {"application/pdf"},
}

var allowedMimeGroupsByPurpose = map[enums.EvidencePurpose][]mimeGroup{
	enums.EvidencePurposeDepositReceipt: {mimeGroupImages, mimeGroupPDFs},
	enums.EvidencePurposeCredential:     {mimeGroupPDFs, mimeGroupImages},
	enums.EvidencePurposeIDCard:         {mimeGroupImages, mimeGroupPDFs},
}

// detectMime sniffs the content and ignores whatever the client claimed.
func detectMime(data []byte) string {
	return strings.ToLower(mimetype.Detect(data).String())
}

// allowedMime reports whether detected is acceptable for purpose. Parameters
// such as charset are ignored.
func allowedMime(purpose enums.EvidencePurpose, detected string) bool {
	base := detected
	if idx := strings.IndexByte(base, ';'); idx >= 0 {
		base = strings.TrimSpace(base[:idx])
	}
	for _, group := range allowedMimeGroupsByPurpose[purpose] {
		for _, candidate := range mimeGroupTypes[group] {
			if candidate == base {
				return true
			}
		}
	}
	return false
}

func allowedMimeDescription(purpose enums.EvidencePurpose) string {
	groups := allowedMimeGroupsByPurpose[purpose]
	names := make([]string, 0, len(groups))
	for _, group := range groups {
		names = append(names, string(group))
	}
	if len(names) == 0 {
		return "no files"
	}
	return strings.Join(names, " or ")
}

func buildKey(purpose enums.EvidencePurpose, ownerID fmt.Stringer, id fmt.Stringer, fileName string) string {
	clean := sanitizeFileName(fileName)
	if clean == "" {
		clean = id.String()
	}
	return fmt.Sprintf("evidence/%s/%s/%s/%s", purpose, ownerID, id, clean)
}

func sanitizeFileName(name string) string {
	clean := path.Base(strings.TrimSpace(name))
	if clean == "." || clean == "/" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(clean))
	for _, r := range clean {
		switch {
		case r == '/' || r == '\\' || unicode.IsControl(r):
			continue
		case unicode.IsSpace(r):
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-_.")
}
