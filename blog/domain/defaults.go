package domain

// DefaultBlogInfo is the metadata used when no document could be loaded or a field is missing.
func DefaultBlogInfo() BlogInfo {
	return BlogInfo{
		Domain:           "myblog.com",
		Title:            "My Blog",
		ShortDescription: "A blog about interesting things",
		FullDescription:  "Detailed description of my blog's content and purpose",
		Owner: Author{
			UserName:  "admin",
			FirstName: "Admin",
			LastName:  "User",
		},
		Authors:       []Author{},
		Categories:    []string{},
		Tags:          []string{},
		RSSFeeds:      []string{},
		FollowedBlogs: []Subscription{},
		Subscribers:   []Subscription{},
	}
}

// DefaultBlogData is an empty document with default metadata.
func DefaultBlogData() *BlogData {
	return &BlogData{
		BlogInfo: DefaultBlogInfo(),
		Posts:    []Post{},
	}
}
