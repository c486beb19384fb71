package api

// RepositoryList is the schema of the optional YAML file naming the
// repositories to chart, e.g.:
//
//	title: Frontend frameworks
//	repositories:
//	  - https://github.com/facebook/react
//	  - url: https://github.com/vuejs/core
type RepositoryList struct {
	Title        string            `yaml:"title"`
	Repositories []RepositoryEntry `yaml:"repositories"`
}

// RepositoryEntry is one repository in the list. It may be written as a
// plain URL string or as a mapping with a url key.
type RepositoryEntry struct {
	URL string `yaml:"url"`
}

// UnmarshalYAML accepts both the scalar and the mapping form.
func (e *RepositoryEntry) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		e.URL = s
		return nil
	}
	type plain RepositoryEntry
	return unmarshal((*plain)(e))
}

// URLs returns the non-empty repository URLs in file order.
func (l RepositoryList) URLs() []string {
	urls := make([]string, 0, len(l.Repositories))
	for _, r := range l.Repositories {
		if r.URL != "" {
			urls = append(urls, r.URL)
		}
	}
	return urls
}
