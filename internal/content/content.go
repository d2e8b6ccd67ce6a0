// internal/content/content.go
//
// Typed content adapters for the static datasets.
//
// Responsibilities:
//   - Read lexicon.json, qutrab.json, proverbs.json and root_facts.json from an fs.FS.
//   - Validate each document against its JSON Schema before decoding.
//   - Enforce the rules a schema cannot express (three Arabic letters per
//     root, unique roots and triangle ids).
//   - Hand the core typed values only: game.RootEntry, game.QutrabTriangle,
//     Proverb and RootFact.
//
// Data source selection (LoadFromEnv):
//   CONTENT_DIR=/path/to/dir   load datasets from a directory
//   (unset)                    use the datasets embedded in the assets package
// Schemas always come from the embedded assets.

package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/robalobadob/juthoor/assets"
	"github.com/robalobadob/juthoor/internal/game"
	"github.com/robalobadob/juthoor/internal/lexicon"
)

// Dataset file names, shared by data and schema lookups.
const (
	LexiconFile   = "lexicon.json"
	QutrabFile    = "qutrab.json"
	ProverbsFile  = "proverbs.json"
	RootFactsFile = "root_facts.json"
)

// ErrInvalidContent wraps every validation failure.
var ErrInvalidContent = errors.New("invalid content")

// Proverb is shown between levels.
type Proverb struct {
	Text    string `json:"text"`
	Meaning string `json:"meaning,omitempty"`
}

// RootFact is optional enrichment for a root.
type RootFact struct {
	Fact    string   `json:"fact"`
	Derived []string `json:"derived,omitempty"`
}

// Bundle is the complete typed content set.
type Bundle struct {
	Roots     []game.RootEntry
	Triangles []game.QutrabTriangle
	Proverbs  []Proverb
	Facts     map[string]RootFact
}

// ProverbForLevel returns proverbs[(level-1) mod count].
func (b *Bundle) ProverbForLevel(level int) (Proverb, bool) {
	if len(b.Proverbs) == 0 {
		return Proverb{}, false
	}
	i := (level - 1) % len(b.Proverbs)
	if i < 0 {
		i += len(b.Proverbs)
	}
	return b.Proverbs[i], true
}

// Fact looks up enrichment for root (vowel marks ignored).
func (b *Bundle) Fact(root string) (RootFact, bool) {
	f, ok := b.Facts[lexicon.Canonical(root)]
	return f, ok
}

// LoadDefault loads the embedded datasets.
func LoadDefault() (*Bundle, error) {
	return Load(assets.Content(), assets.Content())
}

// LoadFromEnv loads from CONTENT_DIR when set, otherwise the embedded data.
func LoadFromEnv() (*Bundle, error) {
	if dir := os.Getenv("CONTENT_DIR"); dir != "" {
		return Load(os.DirFS(dir), assets.Content())
	}
	return LoadDefault()
}

// Load validates and decodes all four datasets from data, using the JSON
// Schemas under schema/ in schemas.
func Load(data, schemas fs.FS) (*Bundle, error) {
	v, err := newValidator(schemas)
	if err != nil {
		return nil, err
	}

	b := &Bundle{}
	if err := v.decode(data, LexiconFile, &b.Roots); err != nil {
		return nil, err
	}
	if err := v.decode(data, QutrabFile, &b.Triangles); err != nil {
		return nil, err
	}
	if err := v.decode(data, ProverbsFile, &b.Proverbs); err != nil {
		return nil, err
	}
	if err := v.decode(data, RootFactsFile, &b.Facts); err != nil {
		return nil, err
	}

	if err := checkRoots(b.Roots); err != nil {
		return nil, err
	}
	if err := checkTriangles(b.Triangles); err != nil {
		return nil, err
	}
	facts := make(map[string]RootFact, len(b.Facts))
	for k, f := range b.Facts {
		facts[lexicon.Canonical(k)] = f
	}
	b.Facts = facts
	return b, nil
}

func checkRoots(roots []game.RootEntry) error {
	seen := make(game.Set[string], len(roots))
	for i, e := range roots {
		r := lexicon.Canonical(e.Root)
		if _, ok := game.SplitRoot(r); !ok {
			return fmt.Errorf("%w: %s[%d]: root %q must be three Arabic letters", ErrInvalidContent, LexiconFile, i, e.Root)
		}
		if seen.Has(r) {
			return fmt.Errorf("%w: %s[%d]: duplicate root %q", ErrInvalidContent, LexiconFile, i, e.Root)
		}
		seen.Add(r)
	}
	return nil
}

func checkTriangles(ts []game.QutrabTriangle) error {
	seen := make(game.Set[int], len(ts))
	for i, t := range ts {
		if seen.Has(t.ID) {
			return fmt.Errorf("%w: %s[%d]: duplicate id %d", ErrInvalidContent, QutrabFile, i, t.ID)
		}
		seen.Add(t.ID)
	}
	return nil
}

// validator holds the compiled schema for each dataset.
type validator struct {
	schemas map[string]*jsonschema.Schema
}

func newValidator(schemas fs.FS) (*validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft7
	v := &validator{schemas: make(map[string]*jsonschema.Schema, 4)}
	for _, name := range []string{LexiconFile, QutrabFile, ProverbsFile, RootFactsFile} {
		file := schemaFile(name)
		raw, err := fs.ReadFile(schemas, file)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", file, err)
		}
		url := "mem://juthoor/" + file
		if err := c.AddResource(url, bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", file, err)
		}
		s, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", file, err)
		}
		v.schemas[name] = s
	}
	return v, nil
}

// decode validates name against its schema, then unmarshals into out.
func (v *validator) decode(data fs.FS, name string, out any) error {
	raw, err := fs.ReadFile(data, name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidContent, name, err)
	}
	if err := v.schemas[name].Validate(doc); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidContent, name, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidContent, name, err)
	}
	return nil
}

// schemaFile maps "lexicon.json" to "schema/lexicon.schema.json".
func schemaFile(name string) string {
	ext := path.Ext(name)
	return path.Join("schema", name[:len(name)-len(ext)]+".schema"+ext)
}
