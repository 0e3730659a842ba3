package models

// Mount is the API view of a configured document mount.
type Mount struct {
	Name        string `json:"name"`
	Prefix      string `json:"prefix"`
	Root        string `json:"root"`
	IndexFile   string `json:"index_file,omitempty"`
	CacheMaxAge int    `json:"cache_max_age"`
	Protected   bool   `json:"protected"`
	Available   bool   `json:"available"`
}
