package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

// Definition is one entry of the definitions document. Display fields are
// opaque to evaluation.
type Definition struct {
	ID          string   `yaml:"id" json:"id"`
	Category    string   `yaml:"category" json:"category"`
	Title       string   `yaml:"title" json:"title"`
	Achievement string   `yaml:"achievement" json:"achievement,omitempty"`
	Trigger     string   `yaml:"trigger" json:"trigger"`
	FlavorText  string   `yaml:"flavorText" json:"flavorText,omitempty"`
	Points      int      `yaml:"points" json:"points"`
	Rarity      string   `yaml:"rarity" json:"rarity"`
	IconPath    string   `yaml:"iconPath" json:"iconPath,omitempty"`
	Keywords    []string `yaml:"keywords_any" json:"keywords_any,omitempty"`
	Tags        []string `yaml:"tags" json:"tags,omitempty"`
}

// DisplayName returns the title, or the alternate name when the title is empty.
func (d Definition) DisplayName() string {
	if d.Title != "" {
		return d.Title
	}
	return d.Achievement
}

// Active pairs a definition with its parsed rule.
type Active struct {
	Definition Definition
	Rule       Rule
}

// RuleSet is an immutable, versioned view of one definitions document.
type RuleSet struct {
	// Version is the hex sha256 of the document bytes.
	Version string
	// Definitions holds every loaded entry after validation and dedupe,
	// including inert and unparseable ones.
	Definitions []Definition
	// Active holds the evaluable rules in document order.
	Active []Active
	Issues []LoadIssue

	byID map[string]int
}

// Definition returns the loaded definition with the given id.
func (rs *RuleSet) Definition(id string) (Definition, bool) {
	i, ok := rs.byID[id]
	if !ok {
		return Definition{}, false
	}
	return rs.Definitions[i], true
}

// Load issue codes (R100-R199).
const (
	IssueInvalidEntry    = "R101" // entry failed schema validation
	IssueDuplicateID     = "R102" // later duplicate of an existing id
	IssueUnknownCategory = "R103" // no evaluator for category; entry is inert
	IssueUnparseable     = "R104" // trigger does not fit the category grammar
)

// LoadIssue describes a problem with a single entry. Issues never fail a load.
type LoadIssue struct {
	Code    string `json:"code"`
	Index   int    `json:"index"`
	ID      string `json:"id,omitempty"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

func (e LoadIssue) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: entry %d (%s): %s", e.Code, e.Line, e.Index, e.ID, e.Message)
	}
	return fmt.Sprintf("[%s] entry %d (%s): %s", e.Code, e.Index, e.ID, e.Message)
}

// ErrInvalidDocument is returned when the document root is unreadable.
var ErrInvalidDocument = errors.New("invalid definitions document")

// definitionSchema is deliberately open: unknown fields are allowed.
const definitionSchema = `
#Definition: {
	id:            string & != ""
	category:      string & != ""
	title:         string & != ""
	achievement?:  string
	trigger?:      string
	flavorText?:   string
	points?:       int & >=0
	rarity?:       string
	iconPath?:     string
	keywords_any?: [...string]
	tags?:         [...string]
	...
}
`

// LoadFile reads and loads the definitions document at path.
func LoadFile(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definitions: %w", err)
	}
	return Load(data)
}

// Load parses a definitions document. The root is either a list of entries
// or an object with an "achievements" list; JSON and YAML are both accepted.
// Per-entry problems are collected in RuleSet.Issues; only an unreadable
// document returns an error.
func Load(data []byte) (*RuleSet, error) {
	entries, err := documentEntries(data)
	if err != nil {
		return nil, err
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(definitionSchema).LookupPath(cue.ParsePath("#Definition"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile definition schema: %w", err)
	}

	sum := sha256.Sum256(data)
	rs := &RuleSet{
		Version:     hex.EncodeToString(sum[:]),
		Definitions: []Definition{},
		Active:      []Active{},
		Issues:      []LoadIssue{},
		byID:        map[string]int{},
	}

	for i, node := range entries {
		def, err := decodeEntry(ctx, schema, node)
		if err != nil {
			rs.Issues = append(rs.Issues, LoadIssue{
				Code: IssueInvalidEntry, Index: i, ID: def.ID, Line: node.Line, Message: err.Error(),
			})
			continue
		}
		if _, dup := rs.byID[def.ID]; dup {
			rs.Issues = append(rs.Issues, LoadIssue{
				Code: IssueDuplicateID, Index: i, ID: def.ID, Line: node.Line,
				Message: "duplicate id; first occurrence kept",
			})
			continue
		}
		if def.Rarity == "" {
			def.Rarity = "Common"
		}

		rs.byID[def.ID] = len(rs.Definitions)
		rs.Definitions = append(rs.Definitions, def)

		rule, err := Parse(def)
		switch {
		case errors.Is(err, ErrUnknownCategory):
			rs.Issues = append(rs.Issues, LoadIssue{
				Code: IssueUnknownCategory, Index: i, ID: def.ID, Line: node.Line, Message: err.Error(),
			})
		case err != nil:
			rs.Issues = append(rs.Issues, LoadIssue{
				Code: IssueUnparseable, Index: i, ID: def.ID, Line: node.Line, Message: err.Error(),
			})
		default:
			rs.Active = append(rs.Active, Active{Definition: def, Rule: rule})
		}
	}

	return rs, nil
}

func documentEntries(data []byte) ([]*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidDocument)
	}

	root := doc.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		return root.Content, nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(root.Content); i += 2 {
			if root.Content[i].Value == "achievements" && root.Content[i+1].Kind == yaml.SequenceNode {
				return root.Content[i+1].Content, nil
			}
		}
		return nil, fmt.Errorf("%w: object root has no achievements list", ErrInvalidDocument)
	default:
		return nil, fmt.Errorf("%w: root must be a list or an object", ErrInvalidDocument)
	}
}

// decodeEntry validates one entry against the schema and decodes it. The
// returned definition carries whatever id could be read, even on error.
func decodeEntry(ctx *cue.Context, schema cue.Value, node *yaml.Node) (Definition, error) {
	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return Definition{}, fmt.Errorf("entry is not an object: %w", err)
	}
	for k, v := range raw {
		if v == nil {
			delete(raw, k)
		}
	}
	if _, ok := raw["id"]; !ok {
		if alt, ok := raw["achievement_id"]; ok {
			raw["id"] = alt
		}
	}
	if title, _ := raw["title"].(string); strings.TrimSpace(title) == "" {
		if alt, ok := raw["achievement"].(string); ok && alt != "" {
			raw["title"] = alt
		}
	}

	id, _ := raw["id"].(string)
	partial := Definition{ID: id}

	v := schema.Unify(ctx.Encode(raw))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return partial, errors.New(strings.TrimSpace(cueerrors.Details(err, nil)))
	}

	var def Definition
	if err := v.Decode(&def); err != nil {
		return partial, fmt.Errorf("decode entry: %w", err)
	}
	def.ID = strings.TrimSpace(def.ID)
	def.Category = strings.TrimSpace(def.Category)
	return def, nil
}
