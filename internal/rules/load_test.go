package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlDoc = `
achievements:
  - id: first_book
    category: milestone_books
    title: First Steps
    trigger: Finish 1 book
    points: 10
    rarity: Common
  - id: first_book
    category: milestone_books
    title: Shadowed
    trigger: Finish 99 books
  - id: hoarder
    category: collector
    title: Hoarder
    trigger: Own 100 books
  - id: vague
    category: narrator
    title: Vague
    trigger: Love a narrator
  - category: meta
    title: Missing Id
    trigger: Earn 5 achievements
  - id: bad_points
    category: meta
    title: Bad Points
    trigger: Earn 5 achievements
    points: lots
  - achievement_id: legacy
    category: series_complete
    achievement: Cradle Complete
    trigger: Complete all books in Cradle
    iconPath: null
    keywords_any: []
`

func TestLoad_YAML(t *testing.T) {
	rs, err := Load([]byte(yamlDoc))
	require.NoError(t, err)

	var ids []string
	for _, d := range rs.Definitions {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"first_book", "hoarder", "vague", "legacy"}, ids)

	require.Len(t, rs.Active, 2)
	assert.Equal(t, "first_book", rs.Active[0].Definition.ID)
	assert.Equal(t, "First Steps", rs.Active[0].Definition.Title, "first occurrence wins")
	assert.Equal(t, CountMilestone{Kind: CountBooks, Threshold: 1}, rs.Active[0].Rule)
	assert.Equal(t, SeriesCompletion{Name: "Cradle"}, rs.Active[1].Rule)

	legacy, ok := rs.Definition("legacy")
	require.True(t, ok)
	assert.Equal(t, "Cradle Complete", legacy.DisplayName())
	assert.Equal(t, "Common", legacy.Rarity, "rarity defaults to Common")

	codes := map[string]int{}
	for _, is := range rs.Issues {
		codes[is.Code]++
	}
	assert.Equal(t, map[string]int{
		IssueDuplicateID:     1,
		IssueUnknownCategory: 1,
		IssueUnparseable:     1,
		IssueInvalidEntry:    2,
	}, codes)

	for _, is := range rs.Issues {
		if is.Code == IssueDuplicateID {
			assert.Equal(t, 1, is.Index)
			assert.Greater(t, is.Line, 0)
		}
	}
}

func TestLoad_JSONList(t *testing.T) {
	doc := `[
		{"id": "over50", "category": "duration", "title": "Marathon", "trigger": "Finish a book that is over 50 hours long", "points": 50, "rarity": "Epic"},
		{"id": "mage", "category": "title_keyword", "title": "Magic Words", "trigger": "x", "keywords_any": ["mage"], "tags": ["fun"]}
	]`

	rs, err := Load([]byte(doc))
	require.NoError(t, err)
	assert.Empty(t, rs.Issues)
	require.Len(t, rs.Active, 2)
	assert.Equal(t, DurationThreshold{Over: true, Hours: 50, Count: 1}, rs.Active[0].Rule)
	assert.Equal(t, 50, rs.Active[0].Definition.Points)
	assert.Equal(t, "Epic", rs.Active[0].Definition.Rarity)
	assert.Equal(t, TitleKeyword{Keywords: []string{"mage"}}, rs.Active[1].Rule)
}

func TestLoad_Version(t *testing.T) {
	a, err := Load([]byte(`[{"id": "a", "category": "meta", "title": "A", "trigger": "Earn 1 achievement"}]`))
	require.NoError(t, err)
	b, err := Load([]byte(`[{"id": "a", "category": "meta", "title": "A", "trigger": "Earn 1 achievement"}]`))
	require.NoError(t, err)
	c, err := Load([]byte(`[{"id": "a", "category": "meta", "title": "A", "trigger": "Earn 2 achievements"}]`))
	require.NoError(t, err)

	assert.Len(t, a.Version, 64)
	assert.Equal(t, a.Version, b.Version)
	assert.NotEqual(t, a.Version, c.Version)
}

func TestLoad_InvalidDocument(t *testing.T) {
	for name, doc := range map[string]string{
		"empty":          ``,
		"scalar root":    `42`,
		"object no list": `{"rules": []}`,
		"malformed":      `[{"id": `,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidDocument)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "achievements.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))

	rs, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, rs.Definitions, 4)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
