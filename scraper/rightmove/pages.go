package rightmove

import (
	"net/url"
	"strconv"
	"strings"

	"property-monitor/models"
)

const indexPlaceholder = "{index}"

// PageJobs builds the search page jobs for a base URL. The base URL either
// carries an {index} placeholder or gets an index query parameter; page i
// starts at listing i*step. At most limit jobs are returned.
func PageJobs(baseURL string, pages, step, limit int) []models.ScrapeJob {
	if pages > limit {
		pages = limit
	}
	jobs := make([]models.ScrapeJob, 0, max(pages, 0))
	for i := 0; i < pages; i++ {
		jobs = append(jobs, models.ScrapeJob{
			URL:        pageURL(baseURL, i*step),
			PageNumber: i + 1,
		})
	}
	return jobs
}

func pageURL(baseURL string, index int) string {
	if strings.Contains(baseURL, indexPlaceholder) {
		return strings.ReplaceAll(baseURL, indexPlaceholder, strconv.Itoa(index))
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return baseURL
	}
	q := u.Query()
	q.Set("index", strconv.Itoa(index))
	u.RawQuery = q.Encode()
	return u.String()
}

// URLJobs turns explicit page URLs into jobs, keeping their order and
// dropping blanks. At most limit jobs are returned.
func URLJobs(urls []string, limit int) []models.ScrapeJob {
	jobs := make([]models.ScrapeJob, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if len(jobs) == limit {
			break
		}
		jobs = append(jobs, models.ScrapeJob{URL: u, PageNumber: len(jobs) + 1})
	}
	return jobs
}
