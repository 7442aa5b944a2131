package search

import (
	"fmt"
	"strconv"
	"strings"
)

// Prompt templates for the oracle-backed tools. Placeholders use {name}
// form and are substituted verbatim; the prompts themselves are full of
// literal % signs, which rules out printf-style templates.

const defaultGenreList = "Fiction, Non-Fiction, Mystery, Romance, Sci-Fi, Fantasy, Thriller, Biography, Historical, History, Science, Self-Help, Horror, Adventure, Poetry, Drama"

const translatorPromptText = `You are an AI that converts natural language search queries into a SAFE and ACCURATE SQL WHERE clause for a book library system.

USER QUERY: "{query}"

DATABASE SCHEMA:
- Table: books
- Searchable columns: title, author, genre, description, published_date, isbn

CRITICAL RULES:

1. **STOP WORDS - IGNORE THESE:**
   Ignore: book, books, novel, related, releted, show, give, find, search, about, want, looking, for
   Only keep: meaningful topics (technology, python, thriller, history, romance, etc.)

2. **DO NOT HALLUCINATE GENRE VALUES:**
   ❌ NEVER invent genre names (e.g., "Health", "Business", "Fiction")
   ✅ Use the EXACT keywords from the user query
   ✅ Search across ALL fields (title, description, genre, author) with the SAME keyword

3. **SEARCH PATTERN (for each meaningful keyword):**
   ` + "```" + `
   (title ILIKE '%keyword%' OR description ILIKE '%keyword%' OR genre ILIKE '%keyword%' OR author ILIKE '%keyword%')
   ` + "```" + `

4. **AND vs OR LOGIC:**
   - Multiple topics → OR (user wants ANY match)
   - Topic + Author → AND
   - Topic + Year → AND

5. **DATES:**
   "from 2020" → EXTRACT(YEAR FROM published_date) = 2020

   **IMPORTANT - Year Abbreviations:**
   - "in 25" or "from 25" → means 2025 (current century)
   - "in 20" or "from 20" → means 2020 (current century)
   - Always interpret 2-digit years as 20XX

   **Date Ranges:**
   - "after 2020" → EXTRACT(YEAR FROM published_date) > 2020
   - "before 2020" → EXTRACT(YEAR FROM published_date) < 2020
   - "in first half of 2025" → EXTRACT(YEAR FROM published_date) = 2025 AND EXTRACT(MONTH FROM published_date) <= 6
   - "in second half of 2025" → EXTRACT(YEAR FROM published_date) = 2025 AND EXTRACT(MONTH FROM published_date) > 6

6. **OUTPUT:**
   Return ONLY the WHERE clause content (no "WHERE" keyword, no explanations)

EXAMPLES:

Query: "technology books"
Remove: "books" (stop word)
Keep: "technology"
→ title ILIKE '%technology%' OR description ILIKE '%technology%' OR genre ILIKE '%technology%' OR author ILIKE '%technology%'

Query: "thriller by king"
Keep: "thriller", "king"
→ (title ILIKE '%thriller%' OR description ILIKE '%thriller%' OR genre ILIKE '%thriller%' OR author ILIKE '%thriller%') AND (author ILIKE '%king%')

Query: "python programming"
Keep: "python", "programming"
→ (title ILIKE '%python%' OR description ILIKE '%python%' OR genre ILIKE '%python%' OR author ILIKE '%python%') OR (title ILIKE '%programming%' OR description ILIKE '%programming%' OR genre ILIKE '%programming%' OR author ILIKE '%programming%')

Query: "books published in 25 after second half"
Extract: year = 2025 (25 → 2025), second half (month > 6)
→ EXTRACT(YEAR FROM published_date) = 2025 AND EXTRACT(MONTH FROM published_date) > 6

Query: "fiction from 2020"
→ (title ILIKE '%fiction%' OR description ILIKE '%fiction%' OR genre ILIKE '%fiction%' OR author ILIKE '%fiction%') AND EXTRACT(YEAR FROM published_date) = 2020

NOW GENERATE FOR: "{query}"
Return ONLY the SQL WHERE clause.`

const extractorPromptText = `You are a filter extraction assistant for a book library API.
Convert this natural language query to structured book search filters.

Query: "{query}"

Extract the following fields:
- author (string or null): Author name if mentioned
- genre (string or null): Genre if mentioned. Use EXACTLY one of these genres from our database: {genre_list}
- published_year (integer or null): Year if mentioned
- search_query (string or null): Extract ONLY the essential keywords (2-5 words) for searching title/description. Remove filler words like "find me", "I want", "maybe", "something about", etc.

CRITICAL RULES for search_query:
- Extract ONLY the core subject matter keywords
- Remove all conversational filler ("find me", "I'm looking for", "maybe", "something about")
- Keep only nouns and key descriptive words (max 2-5 keywords)
- Focus on what the book is ABOUT, not how the user describes wanting it
- Examples of good keywords: "deep-sea expedition", "time travel romance", "medieval kingdom"
- Examples of bad keywords: "Find me a book about deep-sea expedition" (too long!)

Important rules for genre:
- Match the genre to the closest one in the list above
- For "historical fiction" or "history books" → use "Historical" if available
- For "science fiction", "sci-fi", "scifi", "sci-fic" → use "Science Fiction" (or "Sci-Fi" if that's what is in the list)
- Keep genres as they appear in the database list

For search_query normalization:
- CRITICAL: If the user uses "developing" or "development", CHANGE it to "developer" if searching for books about careers/people.
- For "coding", "code" is often better.
- Remove "professional" if it's just a descriptor, unless it's part of a specific title.

Return ONLY valid JSON in this exact format. No markdown, no explanations.
{"author": null, "genre": null, "published_year": null, "search_query": null}

Examples:
Query: "books by J.K. Rowling" -> {"author": "J.K. Rowling", "genre": null, "published_year": null, "search_query": null}
Query: "science fiction from 2020" -> {"author": null, "genre": "Sci-Fi", "published_year": 2020, "search_query": null}
Query: "mystery novels about detective" -> {"author": null, "genre": "Mystery", "published_year": null, "search_query": "detective"}
Query: "historical fiction medieval" -> {"author": null, "genre": "Historical", "published_year": null, "search_query": "medieval"}
Query: "Find me a high-intensity thriller set in dangerous natural environments, maybe something about an expedition gone terribly wrong underwater" -> {"author": null, "genre": "Thriller", "published_year": null, "search_query": "expedition underwater"}
Query: "I want a romance book with time travel and unexpected twists" -> {"author": null, "genre": "Romance", "published_year": null, "search_query": "time travel"}`

const recommendPromptText = `You are a book recommendation assistant. Based on user's reading history, recommend books.

User's reading history:
Borrowed books: {borrowed_books}
Reviewed books: {reviewed_books}

Available books:
{available_books}

{genre_filter}

Recommend {limit} books from the available books that match user preferences.
Return ONLY a valid JSON array of book IDs (integers). No markdown, no explanations.
Example: [1, 5, 8, 12, 15]`

func translatorPrompt(query string) string {
	return strings.ReplaceAll(translatorPromptText, "{query}", query)
}

func extractorPrompt(query, genreList string) string {
	if genreList == "" {
		genreList = defaultGenreList
	}
	return strings.NewReplacer(
		"{query}", query,
		"{genre_list}", genreList,
	).Replace(extractorPromptText)
}

func recommendPrompt(borrowed, reviewed, available, genre string, limit int) string {
	var filter string
	if genre != "" {
		filter = fmt.Sprintf("Only recommend books in the '%s' genre.", genre)
	}
	return strings.NewReplacer(
		"{borrowed_books}", borrowed,
		"{reviewed_books}", reviewed,
		"{available_books}", available,
		"{genre_filter}", filter,
		"{limit}", strconv.Itoa(limit),
	).Replace(recommendPromptText)
}
