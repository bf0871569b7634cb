package auth

// a freshly minted anonymous identity
type AnonymousResponse struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}
