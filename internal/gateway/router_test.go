package gateway

import (
	"net/http"
	"testing"
)

func TestClassify(t *testing.T) {
	rt := NewRouteTable([]string{"/weather", "/market", "/calendar", "/advisories"})

	tests := []struct {
		name   string
		method string
		path   string
		dest   string
		want   Decision
	}{
		{"stylesheet", http.MethodGet, "/styles/app.css", "style", DecideStatic},
		{"script", http.MethodGet, "/app.js", "script", DecideStatic},
		{"font", http.MethodGet, "/fonts/devanagari.woff2", "font", DecideStatic},
		{"image", http.MethodGet, "/icons/wheat.png", "image", DecideImage},
		{"weather", http.MethodGet, "/weather", "", DecideAPI},
		{"market with prefix", http.MethodGet, "/backend/market", "", DecideAPI},
		{"calendar deep path", http.MethodGet, "/api/v2/calendar", "", DecideAPI},
		{"advisories", http.MethodGet, "/advisories", "empty", DecideAPI},
		{"post to data route is not cached", http.MethodPost, "/weather", "", DecidePassthrough},
		{"advice", http.MethodPost, "/backend/advice", "", DecideAdvice},
		{"advice no prefix", http.MethodPost, "/advice", "", DecideAdvice},
		{"get advice is not queued", http.MethodGet, "/advice", "", DecidePassthrough},
		{"navigation", http.MethodGet, "/chat", "document", DecideDocument},
		{"plain api call", http.MethodGet, "/soil", "", DecidePassthrough},
		{"supermarket is not market", http.MethodGet, "/supermarket", "", DecidePassthrough},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rt.Classify(tt.method, tt.path, tt.dest); got != tt.want {
				t.Errorf("Classify(%s %s dest=%q) = %d, want %d", tt.method, tt.path, tt.dest, got, tt.want)
			}
		})
	}
}

func TestBackendURL(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"/backend/advice", "https://api.example.com/advice"},
		{"/advice", "https://api.example.com/advice"},
		{"/backend/market?crop=Wheat&days=30", "https://api.example.com/market?crop=Wheat&days=30"},
		{"/weather?district=Kanpur", "https://api.example.com/weather?district=Kanpur"},
	}
	for _, tt := range tests {
		if got := BackendURL("https://api.example.com", tt.uri); got != tt.want {
			t.Errorf("BackendURL(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}
