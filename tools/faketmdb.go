package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

var (
	detailsPath  = regexp.MustCompile(`^/3/(movie|tv)/(\d+)$`)
	videosPath   = regexp.MustCompile(`^/3/(movie|tv)/(\d+)/videos$`)
	providerPath = regexp.MustCompile(`^/3/(movie|tv)/(\d+)/watch/providers$`)
	seasonPath   = regexp.MustCompile(`^/3/tv/(\d+)/season/(\d+)$`)
	episodePath  = regexp.MustCompile(`^/3/tv/(\d+)/season/(\d+)/episode/(\d+)$`)
	listPath     = regexp.MustCompile(`^/3/(movie/popular|movie/now_playing|tv/popular|trending/all/(day|week)|discover/(movie|tv))$`)
	searchPath   = regexp.MustCompile(`^/3/search/(movie|tv)$`)
	genrePath    = regexp.MustCompile(`^/3/genre/(movie|tv)/list$`)
)

// Odd ids are movies, even ids are series, so the info fallback can be
// exercised locally with movie_<even>.
func main() {
	addr := flag.String("addr", ":8081", "Listen address")
	flag.Parse()

	http.HandleFunc("/3/", tmdbRouter)

	fmt.Println("Fake TMDB server starting on", *addr)
	fmt.Println("Point metadata.base_url at http://localhost" + *addr + "/3")
	log.Fatal(http.ListenAndServe(*addr, nil))
}

func tmdbRouter(w http.ResponseWriter, r *http.Request) {
	log.Printf("Received request URL: %s", r.URL.String())

	if r.URL.Query().Get("api_key") == "" {
		writeStatus(w, http.StatusUnauthorized, 7, "Invalid API key: You must be granted a valid key.")
		return
	}

	p := r.URL.Path
	switch {
	case p == "/3/configuration":
		fmt.Fprint(w, `{"images":{"secure_base_url":"https://image.tmdb.org/t/p/"}}`)
	case searchPath.MatchString(p):
		searchHandler(w, r, searchPath.FindStringSubmatch(p)[1])
	case genrePath.MatchString(p):
		fmt.Fprint(w, `{"genres":[{"id":18,"name":"Drame"},{"id":35,"name":"Comédie"},{"id":878,"name":"Science-Fiction"}]}`)
	case listPath.MatchString(p):
		listHandler(w, r)
	case videosPath.MatchString(p):
		m := videosPath.FindStringSubmatch(p)
		fmt.Fprintf(w, `{"id":%s,"results":[{"key":"teaser%s","site":"YouTube","type":"Teaser","name":"Teaser"},{"key":"trailer%s","site":"YouTube","type":"Trailer","name":"Bande-annonce"}]}`, m[2], m[2], m[2])
	case providerPath.MatchString(p):
		fmt.Fprint(w, `{"results":{"FR":{"link":"https://www.themoviedb.org","flatrate":[{"provider_id":8,"provider_name":"Netflix"}]}}}`)
	case episodePath.MatchString(p):
		m := episodePath.FindStringSubmatch(p)
		if ep, _ := strconv.Atoi(m[3]); ep > 10 {
			writeStatus(w, http.StatusNotFound, 34, "The resource you requested could not be found.")
			return
		}
		fmt.Fprintf(w, `{"season_number":%s,"episode_number":%s,"name":"Episode %s","credits":{"cast":[]}}`, m[2], m[3], m[3])
	case seasonPath.MatchString(p):
		m := seasonPath.FindStringSubmatch(p)
		var eps []string
		for i := 1; i <= 10; i++ {
			eps = append(eps, fmt.Sprintf(`{"episode_number":%d,"name":"Episode %d"}`, i, i))
		}
		fmt.Fprintf(w, `{"season_number":%s,"episodes":[%s]}`, m[2], strings.Join(eps, ","))
	case detailsPath.MatchString(p):
		detailsHandler(w, detailsPath.FindStringSubmatch(p))
	default:
		writeStatus(w, http.StatusNotFound, 34, "The resource you requested could not be found.")
	}
}

func writeStatus(w http.ResponseWriter, status, code int, message string) {
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"success":false,"status_code":%d,"status_message":%q}`, code, message)
}

func detailsHandler(w http.ResponseWriter, m []string) {
	kind, id := m[1], m[2]
	n, _ := strconv.Atoi(id)
	isMovie := n%2 == 1
	if (kind == "movie") != isMovie {
		writeStatus(w, http.StatusNotFound, 34, "The resource you requested could not be found.")
		return
	}

	if kind == "movie" {
		fmt.Fprintf(w, `{"id":%d,"title":"Film %d","release_date":"2010-07-15","poster_path":"/film%d.jpg","backdrop_path":"/bd%d.jpg","credits":{"cast":[]}}`, n, n, n, n)
		return
	}
	fmt.Fprintf(w, `{"id":%d,"name":"Série %d","first_air_date":"2011-04-17","poster_path":"/serie%d.jpg","seasons":[{"season_number":1,"episode_count":10},{"season_number":2,"episode_count":10}]}`, n, n, n)
}

func searchHandler(w http.ResponseWriter, r *http.Request, kind string) {
	q := strings.TrimSpace(r.URL.Query().Get("query"))
	if q == "" {
		q = "Default Title (No Query Provided)"
	}

	var items []string
	for i := 0; i < rand.Intn(4)+1; i++ {
		id := rand.Intn(5000)*2 + 1
		if kind == "tv" {
			items = append(items, fmt.Sprintf(`{"id":%d,"name":%q,"first_air_date":"2015-01-01","overview":"Fake series","vote_average":7.1}`, id+1, fmt.Sprintf("%s %d", q, i+1)))
			continue
		}
		items = append(items, fmt.Sprintf(`{"id":%d,"title":%q,"release_date":"2012-05-04","poster_path":"/s%d.jpg","vote_average":6.4}`, id, fmt.Sprintf("%s %d", q, i+1), id))
	}
	fmt.Fprintf(w, `{"page":1,"total_pages":1,"total_results":%d,"results":[%s]}`, len(items), strings.Join(items, ","))
}

func listHandler(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	var items []string
	for i := 0; i < 20; i++ {
		id := (page-1)*20 + i + 1
		items = append(items, fmt.Sprintf(`{"id":%d,"title":"Titre %d","poster_path":"/l%d.jpg","popularity":%.1f}`, id, id, id, rand.Float64()*100))
	}
	fmt.Fprintf(w, `{"page":%d,"total_pages":50,"total_results":1000,"results":[%s]}`, page, strings.Join(items, ","))
}
