package models

// CategoryCount is the number of documents in one category.
type CategoryCount struct {
	Category DocumentCategory `db:"category" json:"category"`
	Count    int              `db:"count" json:"count"`
}

// PlatformStats summarises platform usage for administrators.
type PlatformStats struct {
	TotalUsers          int             `json:"total_users"`
	ActiveUsers         int             `json:"active_users"`
	OnlineUsers         int             `json:"online_users"`
	TotalDocuments      int             `json:"total_documents"`
	OfficialDocuments   int             `json:"official_documents"`
	TotalDownloads      int64           `json:"total_downloads"`
	TotalFriendships    int             `json:"total_friendships"`
	DocumentsByCategory []CategoryCount `json:"documents_by_category"`
}
