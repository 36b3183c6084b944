package vitals

// Suggestion is one entry of the static optimization catalog.
type Suggestion struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Impact       Impact   `json:"impact"`
	Metric       Metric   `json:"metric"`
	Category     string   `json:"category"`
	ActionSteps  []string `json:"action_steps"`
	LearnMoreURL string   `json:"learn_more_url,omitempty"`
}

var catalog = []Suggestion{
	{
		ID:          "1",
		Title:       "Optimize Images",
		Description: "Large images are affecting your LCP score. Consider using modern formats like WebP.",
		Impact:      High,
		Metric:      LCP,
		Category:    "Images",
		ActionSteps: []string{
			"Convert images to WebP or AVIF format",
			"Implement responsive images with srcset",
			"Add proper width and height attributes",
			"Consider lazy loading for below-the-fold images",
		},
		LearnMoreURL: "https://web.dev/optimize-lcp/",
	},
	{
		ID:          "2",
		Title:       "Reduce JavaScript Bundle Size",
		Description: "Large JavaScript bundles are causing layout shifts during page load.",
		Impact:      Medium,
		Metric:      CLS,
		Category:    "JavaScript",
		ActionSteps: []string{
			"Implement code splitting",
			"Remove unused JavaScript",
			"Use dynamic imports for non-critical code",
			"Optimize third-party scripts",
		},
		LearnMoreURL: "https://web.dev/reduce-javascript-payloads-with-code-splitting/",
	},
	{
		ID:          "3",
		Title:       "Break Up Long Tasks",
		Description: "Long main-thread tasks delay the response to the first user interaction.",
		Impact:      High,
		Metric:      FID,
		Category:    "JavaScript",
		ActionSteps: []string{
			"Split work into chunks under 50ms",
			"Yield to the main thread between chunks",
			"Move heavy computation into a web worker",
		},
		LearnMoreURL: "https://web.dev/optimize-fid/",
	},
	{
		ID:          "4",
		Title:       "Reserve Space for Embeds",
		Description: "Ads, iframes and late-loading embeds push content around after first render.",
		Impact:      Low,
		Metric:      CLS,
		Category:    "Layout",
		ActionSteps: []string{
			"Set explicit dimensions on ad slots and iframes",
			"Avoid inserting content above existing content",
		},
		LearnMoreURL: "https://web.dev/optimize-cls/",
	},
}

// Catalog returns a copy of the suggestion catalog in display order.
// Callers may modify the returned slice freely.
func Catalog() []Suggestion {
	out := make([]Suggestion, len(catalog))
	for i, s := range catalog {
		s.ActionSteps = append([]string(nil), s.ActionSteps...)
		out[i] = s
	}
	return out
}
