package evaluate

import (
	"regexp"
	"strings"

	"github.com/roach88/trophycase/internal/rules"
)

// wordEdge is a Unicode-aware word boundary. RE2's \b only knows ASCII, so
// "mag" would match inside "Magé".
const wordEdge = `[^\p{L}\p{N}_]`

// keywordPattern matches kw as a whole word, ignoring case. "mage" matches
// "The Mage's Tower" but not "ImageCraft".
func keywordPattern(kw string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|` + wordEdge + `)` + regexp.QuoteMeta(kw) + `(?:$|` + wordEdge + `)`)
}

func titleKeyword(in Input, r rules.TitleKeyword) Outcome {
	s := in.Snapshot
	if len(r.Keywords) == 0 || len(s.Finished) == 0 {
		return notEarned
	}

	patterns := make([]*regexp.Regexp, len(r.Keywords))
	for i, kw := range r.Keywords {
		patterns[i] = keywordPattern(kw)
	}

	for _, f := range s.Finished {
		meta := s.Item(f.ItemID)
		text := strings.TrimSpace(meta.Title + " " + meta.Subtitle)
		if text == "" {
			continue
		}
		for i, p := range patterns {
			if p.MatchString(text) {
				return earned(f.FinishedAt, map[string]any{
					"itemId":  f.ItemID,
					"title":   meta.Title,
					"keyword": r.Keywords[i],
				})
			}
		}
	}
	return notEarned
}
