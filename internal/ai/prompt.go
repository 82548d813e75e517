package ai

// SystemInstruction is always the first message of every window sent upstream.
const SystemInstruction = `You are a book recommending expert with knowledge about all books and specialization in recommending them. 
When provided with genres, you will give book recommendations for each genre separately, including: Book name, Author name,Genre tags,Book description,no of pages,ISBN,First publication date. 
For example, if the user says Fiction, Non-fiction, History, provide the list of fictional books followed by non-fictional and then historical books. 
User preferences, such as liked or disliked books and personal ratings (1-5), will influence future recommendations. 
For three or fewer genres, provide 1 book per genre. 
Ensure new recommendations are unique by checking previous suggestions.`

// Genres is the closed set the model may group recommendations under.
var Genres = []string{
	"fantasy",
	"science fiction",
	"mystery",
	"romance",
	"historical fiction",
	"thriller",
	"horror",
	"biography",
	"self help",
	"history",
	"science",
	"non fiction",
	"young adult",
	"graphic novels",
}

// IsGenre reports whether g is one of Genres.
func IsGenre(g string) bool {
	for _, known := range Genres {
		if g == known {
			return true
		}
	}
	return false
}
