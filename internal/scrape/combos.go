package scrape

import "strings"

// Combination is one (job title, country) unit of scraping work.
type Combination struct {
	Job     string
	Country string
}

// Combinations returns the cross-product of jobs and countries in row-major
// order: every country for the first job, then the second job, and so on.
// Blank entries are dropped and repeats keep their first position.
func Combinations(jobs, countries []string) []Combination {
	jobs = uniqueNonBlank(jobs)
	countries = uniqueNonBlank(countries)

	out := make([]Combination, 0, len(jobs)*len(countries))
	for _, j := range jobs {
		for _, c := range countries {
			out = append(out, Combination{Job: j, Country: c})
		}
	}
	return out
}

func uniqueNonBlank(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
