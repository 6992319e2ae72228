package lint

import (
	"crypto/sha256"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/robertkrimen/otto/parser"
)

// Violation is one syntax error in a script, positioned 1-based.
type Violation struct {
	Line    int
	Column  int
	Message string
}

func (v Violation) String() string {
	return fmt.Sprintf("(%d:%d): %s", v.Line, v.Column, v.Message)
}

// Validator checks that scripts parse as ES5. Results are cached by content
// so watch mode only reparses files that changed.
type Validator struct {
	cache *lru.Cache[[sha256.Size]byte, []Violation]
}

func NewValidator() (*Validator, error) {
	cache, err := lru.New[[sha256.Size]byte, []Violation](1024)
	if err != nil {
		return nil, err
	}
	return &Validator{cache: cache}, nil
}

// Validate returns every violation otto reports for src, or nil when it
// parses. filename only labels parser messages.
func (v *Validator) Validate(filename string, src []byte) []Violation {
	key := sha256.Sum256(src)
	if cached, ok := v.cache.Get(key); ok {
		return cached
	}
	violations := check(filename, src)
	v.cache.Add(key, violations)
	return violations
}

func check(filename string, src []byte) []Violation {
	// regular expressions are valid ES5 even when otto cannot translate them to RE2
	_, err := parser.ParseFile(nil, filename, src, parser.IgnoreRegExpErrors)
	if err == nil {
		return nil
	}

	var list *parser.ErrorList
	if errors.As(err, &list) {
		violations := make([]Violation, 0, len(*list))
		for _, e := range *list {
			violations = append(violations, Violation{
				Line:    e.Position.Line,
				Column:  e.Position.Column,
				Message: e.Message,
			})
		}
		return violations
	}
	var single *parser.Error
	if errors.As(err, &single) {
		return []Violation{{Line: single.Position.Line, Column: single.Position.Column, Message: single.Message}}
	}
	return []Violation{{Message: err.Error()}}
}
