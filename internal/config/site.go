package config

// SiteConfig holds per-site overrides keyed by host in the config file.
type SiteConfig struct {
	// Cookie is an HTTP cookie sent with every request to this site.
	// Format: "name=value" or "name1=value1; name2=value2".
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra HTTP headers for requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// MaxDepth overrides the global crawl depth. Zero keeps the global.
	MaxDepth int `yaml:"maxDepth,omitempty"`

	// MaxPages overrides the global page cap. Zero keeps the global.
	MaxPages int `yaml:"maxPages,omitempty"`

	// ExcludePatterns are appended to the global exclude patterns.
	ExcludePatterns []string `yaml:"excludePatterns,omitempty"`

	// FollowPatterns replace the global follow patterns when set.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// File is the parsed structure of the .a11yscan configuration file.
type File struct {
	// Sites maps hostnames to their overrides.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every site unless overridden.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// SiteConfig returns the merged configuration for a host: defaults
// overlaid with the host's own entry.
func (f *File) SiteConfig(host string) SiteConfig {
	result := f.Defaults
	site, ok := f.Sites[host]
	if !ok {
		return result
	}
	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if site.MaxDepth != 0 {
		result.MaxDepth = site.MaxDepth
	}
	if site.MaxPages != 0 {
		result.MaxPages = site.MaxPages
	}
	if len(site.Headers) > 0 {
		merged := make(map[string]string, len(result.Headers)+len(site.Headers))
		for k, v := range result.Headers {
			merged[k] = v
		}
		for k, v := range site.Headers {
			merged[k] = v
		}
		result.Headers = merged
	}
	if len(site.ExcludePatterns) > 0 {
		result.ExcludePatterns = append(append([]string{}, result.ExcludePatterns...), site.ExcludePatterns...)
	}
	if len(site.FollowPatterns) > 0 {
		result.FollowPatterns = site.FollowPatterns
	}
	return result
}

// RequestHeaders flattens the site's headers and cookie into one map
// ready for the renderer.
func (s SiteConfig) RequestHeaders() map[string]string {
	if s.Cookie == "" && len(s.Headers) == 0 {
		return nil
	}
	headers := make(map[string]string, len(s.Headers)+1)
	for k, v := range s.Headers {
		headers[k] = v
	}
	if s.Cookie != "" {
		headers["Cookie"] = s.Cookie
	}
	return headers
}
