package github

// Exported shims for testing internal behaviour from the github_test
// package.

// CloneURLForTest exposes cloneURL.
func (c *Client) CloneURLForTest(
	owner string,
	repo string,
) string {
	return c.cloneURL(owner, repo)
}

// ContentBytesForTest exposes the contentBytes normalization of a
// FileContent variant.
func ContentBytesForTest(fc FileContent) ([]byte, error) {
	return fc.contentBytes()
}
