package movie

// Movie 是 TMDB 列表接口返回的影片条目。
type Movie struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Overview     string  `json:"overview"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	ReleaseDate  string  `json:"release_date"`
	VoteAverage  float64 `json:"vote_average"`
	VoteCount    int     `json:"vote_count"`
	Popularity   float64 `json:"popularity"`
	GenreIDs     []int   `json:"genre_ids,omitempty"`
}

// Year returns the release year, or "N/A" when TMDB has no date.
func (m Movie) Year() string {
	if len(m.ReleaseDate) < 4 {
		return "N/A"
	}
	return m.ReleaseDate[:4]
}

// Genre 对应 TMDB 的类型条目。
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Detail is the movie/{id} payload.
type Detail struct {
	Movie
	Genres  []Genre `json:"genres"`
	Runtime int     `json:"runtime"`
	Tagline string  `json:"tagline"`
}

// Page is one page of a TMDB list endpoint.
type Page struct {
	Page         int     `json:"page"`
	Results      []Movie `json:"results"`
	TotalPages   int     `json:"total_pages"`
	TotalResults int     `json:"total_results"`
}

// Ranked pairs a backend top10 entry with its TMDB match.
type Ranked struct {
	Title string `json:"title"`
	Count int    `json:"count"`
	Movie *Movie `json:"movie,omitempty"`
}
