package geocode

// SetTestURL points a client at a test server.
// This should only be used in tests.
func SetTestURL(c *Client, baseURL string) {
	c.http.SetBaseURL(baseURL)
	c.http.SetRetryCount(0)
}
