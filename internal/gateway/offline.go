package gateway

import "net/http"

// offlinePage is the fixed fallback document served when a navigation
// cannot reach the network and nothing better matched.
const offlinePage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Krishi Mitra — Offline</title>
  <style>
    body { font-family: sans-serif; text-align: center; padding: 3rem 1rem; color: #2e4a2e; }
    h1 { font-size: 1.4rem; }
  </style>
</head>
<body>
  <h1>You are offline</h1>
  <p>Krishi Mitra could not reach the network. Cached weather, market
  prices and advisories are still available from the app.</p>
</body>
</html>
`

func serveOfflinePage(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	setCacheHeader(w.Header(), "fallback")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(offlinePage))
}
