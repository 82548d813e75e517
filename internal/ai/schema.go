package ai

// Schema describes a JSON value using JSON Schema conventions.
type Schema struct {
	Type                 string             `json:"type"`
	Description          string             `json:"description,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Required             []string           `json:"required,omitempty"`
	Enum                 []string           `json:"enum,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	AdditionalProperties *bool              `json:"additionalProperties,omitempty"`
}

// ResponseFormat is the OpenAI response_format object for structured output.
type ResponseFormat struct {
	Type       string     `json:"type"`
	JSONSchema JSONSchema `json:"json_schema"`
}

type JSONSchema struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Schema      *Schema `json:"schema"`
	Strict      bool    `json:"strict"`
}

// Keys of a book record, in schema order. All are required.
var bookKeys = []string{
	"book_name",
	"author_name",
	"genre_tags",
	"description",
	"pages",
	"isbn",
	"first_date_of_publication",
}

// BookRecommendationFormat returns the strict schema the model must answer with.
// Each call builds a new value; callers may keep and share the result read-only.
func BookRecommendationFormat() ResponseFormat {
	closed := false

	book := &Schema{
		Type:        "object",
		Description: "Book details containing different attributes",
		Properties: map[string]*Schema{
			"book_name":   {Type: "string", Description: "Title of the book"},
			"author_name": {Type: "string", Description: "Author of the book"},
			"genre_tags": {
				Type:        "array",
				Description: "Different genres to which this book can belong",
				Items:       &Schema{Type: "string"},
			},
			"description":               {Type: "string", Description: "A 1 line description for the book"},
			"pages":                     {Type: "integer", Description: "Number of the pages in book"},
			"isbn":                      {Type: "string", Description: "Unique isbn of the book"},
			"first_date_of_publication": {Type: "string", Description: "First date on which book was published"},
		},
		AdditionalProperties: &closed,
		Required:             append([]string(nil), bookKeys...),
	}

	group := &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"genre": {
				Type:        "string",
				Description: "Genre associated to a book list",
				Enum:        append([]string(nil), Genres...),
			},
			"list": {
				Type:        "array",
				Description: "List of books for particular genre",
				Items:       book,
			},
		},
		AdditionalProperties: &closed,
		Required:             []string{"genre", "list"},
	}

	return ResponseFormat{
		Type: "json_schema",
		JSONSchema: JSONSchema{
			Name:        "book_recommendation",
			Description: "List of generated book recommendation details seperated genre wise",
			Schema: &Schema{
				Type: "object",
				Properties: map[string]*Schema{
					"data": {Type: "array", Items: group},
				},
				AdditionalProperties: &closed,
				Required:             []string{"data"},
			},
			Strict: true,
		},
	}
}
