package ai

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/tidwall/gjson"
)

// BookList is the structured payload returned to callers on success.
type BookList struct {
	Data []GenreBooks `json:"data"`
}

type GenreBooks struct {
	Genre string `json:"genre"`
	List  []Book `json:"list"`
}

type Book struct {
	Title                string   `json:"book_name"`
	Author               string   `json:"author_name"`
	GenreTags            []string `json:"genre_tags"`
	Description          string   `json:"description"`
	Pages                int      `json:"pages"`
	ISBN                 string   `json:"isbn"`
	FirstPublicationDate string   `json:"first_date_of_publication"`
}

// UnmarshalJSON accepts any integral JSON number for pages, so 310.0 decodes
// like 310. Unknown keys are still rejected.
func (b *Book) UnmarshalJSON(data []byte) error {
	type bookFields Book
	var aux struct {
		bookFields
		Pages json.Number `json:"pages"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&aux); err != nil {
		return err
	}

	*b = Book(aux.bookFields)
	if aux.Pages == "" {
		return nil
	}
	n, err := aux.Pages.Float64()
	if err != nil || n != math.Trunc(n) || math.Abs(n) > math.MaxInt32 {
		return fmt.Errorf("pages %s is not an integer", aux.Pages)
	}
	b.Pages = int(n)
	return nil
}

// Validate checks constraints that strict decoding cannot express.
func (l *BookList) Validate() error {
	var problems []string
	for i, g := range l.Data {
		if !IsGenre(g.Genre) {
			problems = append(problems, fmt.Sprintf("data[%d].genre %q is not a known genre", i, g.Genre))
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// ParseCompletion extracts the structured book list from a chat-completion
// response body.
func ParseCompletion(body []byte) (*BookList, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("completion body is not valid JSON")
	}
	msg := gjson.GetBytes(body, "choices.0.message")
	if !msg.Exists() {
		return nil, errors.New("completion has no choices")
	}
	if refusal := msg.Get("refusal"); refusal.Type == gjson.String && refusal.String() != "" {
		return nil, fmt.Errorf("model refused: %s", refusal.String())
	}
	content := msg.Get("content")
	if content.Type != gjson.String {
		return nil, errors.New("completion message has no content")
	}
	return DecodeBookList([]byte(content.String()))
}

// DecodeBookList decodes raw as a BookList, rejecting missing required keys
// and any key the schema does not declare.
func DecodeBookList(raw []byte) (*BookList, error) {
	if !gjson.ValidBytes(raw) {
		return nil, errors.New("content is not valid JSON")
	}
	if err := checkRequiredKeys(gjson.ParseBytes(raw)); err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var list BookList
	if err := dec.Decode(&list); err != nil {
		return nil, fmt.Errorf("decoding content: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, errors.New("content has trailing data")
	}
	if err := list.Validate(); err != nil {
		return nil, err
	}
	return &list, nil
}

// checkRequiredKeys reports every required key that is absent, null or of the
// wrong JSON type. encoding/json would otherwise turn those into zero values.
func checkRequiredKeys(root gjson.Result) error {
	data := root.Get("data")
	if !data.IsArray() {
		return errors.New(`content is missing the "data" array`)
	}

	var problems []string
	data.ForEach(func(gi, group gjson.Result) bool {
		at := fmt.Sprintf("data[%d]", gi.Int())
		if p := checkKey(group, at, "genre"); p != "" {
			problems = append(problems, p)
		}
		if p := checkKey(group, at, "list"); p != "" {
			problems = append(problems, p)
			return true
		}
		group.Get("list").ForEach(func(bi, book gjson.Result) bool {
			bookAt := fmt.Sprintf("%s.list[%d]", at, bi.Int())
			for _, key := range bookKeys {
				if p := checkKey(book, bookAt, key); p != "" {
					problems = append(problems, p)
				}
			}
			return true
		})
		return true
	})

	if len(problems) > 0 {
		return fmt.Errorf("content does not match the schema: %s", strings.Join(problems, ", "))
	}
	return nil
}

func checkKey(obj gjson.Result, at, key string) string {
	v := obj.Get(key)
	path := at + "." + key
	switch {
	case !v.Exists():
		return path
	case v.Type == gjson.Null:
		return path + " (null)"
	}

	switch key {
	case "list":
		if !v.IsArray() {
			return path + " (not an array)"
		}
	case "genre_tags":
		if !v.IsArray() {
			return path + " (not an array)"
		}
		for i, tag := range v.Array() {
			if tag.Type != gjson.String {
				return fmt.Sprintf("%s[%d] (not a string)", path, i)
			}
		}
	case "pages":
		if v.Type != gjson.Number {
			return path + " (not a number)"
		}
		if n := v.Float(); n != math.Trunc(n) {
			return path + " (not an integer)"
		}
	default:
		if v.Type != gjson.String {
			return path + " (not a string)"
		}
	}
	return ""
}
